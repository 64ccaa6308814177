package pii

import "strings"

// Restore substitutes every literal occurrence of each mapping's token
// back to its original value. Tokens absent from the table are left
// untouched: restoration never guesses or fuzzy-matches. A provider
// response that paraphrased a placeholder away simply loses that
// restoration, which is accepted behavior. Empty table or empty input
// make this the identity function.
func Restore(text string, table *MappingTable) string {
	if text == "" || table == nil || table.Len() == 0 {
		return text
	}
	restored := text
	for _, m := range table.Mappings() {
		restored = strings.ReplaceAll(restored, m.Token, m.OriginalValue)
	}
	return restored
}
