package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleCaser = cases.Title(language.English)

	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
	addressStyle       = color.New(color.FgWhite)
	faintStyle         = color.New(color.Faint)
	pendingStyle       = color.New(color.FgYellow)
	successStyle       = color.New(color.FgGreen)
	failureStyle       = color.New(color.FgRed)
	refStyle           = color.New(color.FgCyan)
)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	if len(message) > 0 {
		message = strings.ToUpper(message[:1]) + message[1:]
	}
	return failureStyle.Sprintf("❌ %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return successStyle.Sprintf("✅ %s", message)
}

// JSON writes v as indented JSON
func JSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// title turns snake_case identifiers into display text: already_verified
// becomes Already Verified
func title(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// shortHash abbreviates a transaction hash for tables
func shortHash(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return fmt.Sprintf("%s…%s", hash[:10], hash[len(hash)-6:])
}
