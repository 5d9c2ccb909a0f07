// Package validation provides pure validation functions for settings.
//
// Problems found here are reported to the user when settings are edited or
// imported. None of them are fatal: the matcher and URL builder already skip
// malformed entries, so saving settings with warnings is allowed.
//
// # Usage
//
//	for _, fe := range validation.ValidateSettings(settings) {
//	    // Show fe.Field and fe.Message next to the offending input
//	}
package validation
