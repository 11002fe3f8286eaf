// Package types provides core types used across the agentchat module.
// This package has ZERO dependencies on other agentchat packages to avoid
// circular imports. All other packages should import types from here.
package types
