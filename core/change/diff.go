package change

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffSummary renders a unified diff of the old and new field snapshots,
// for review screens and resolution notifications.
func DiffSummary(oldData, newData FieldSet) string {
	diff := difflib.UnifiedDiff{
		A:        fieldLines(oldData),
		B:        fieldLines(newData),
		FromFile: "committed",
		ToFile:   "proposed",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func fieldLines(fs FieldSet) []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s\n", name, fs.String(name)))
	}
	return lines
}

// Summary is the human-readable one-liner shown in badges and toasts,
// e.g. "attendance #42: present: false -> true".
func (cr *ChangeRequest) Summary() string {
	if cr.Details != "" {
		return cr.Details
	}
	changed := ChangedFields(cr.OldData, cr.NewData)
	parts := make([]string, 0, len(changed))
	for _, name := range changed {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", name, cr.OldData.String(name), cr.NewData.String(name)))
	}
	return fmt.Sprintf("%s #%s: %s", cr.ModelType, cr.ObjectID, strings.Join(parts, ", "))
}
