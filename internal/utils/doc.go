// Package utils provides input validation shared by every front end.
//
// Validation:
//   - Tab and tool id format and length
//   - Window dimensions
//   - Write and request size limits
//
// Example Usage:
//
//	if err := utils.ValidateID(tabID, "tab_id", true); err != nil {
//		return err
//	}
package utils
