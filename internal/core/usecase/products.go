package usecase

import "strings"

const maxRecommendedProducts = 5

// productMention pairs the tokens that identify a product in answer text
// with the display name surfaced to the user. Trade name and active
// ingredient map to the same display so a product never appears twice.
// Trade names that double as everyday words (Secure, Drive, Monument,
// Merit, Dimension, Certainty) match only on their active ingredient.
type productMention struct {
	matches []string
	display string
}

var productMentions = []productMention{
	// Fungicides
	{[]string{"heritage", "azoxystrobin"}, "Heritage (azoxystrobin)"},
	{[]string{"daconil", "chlorothalonil"}, "Daconil (chlorothalonil)"},
	{[]string{"banner maxx", "propiconazole"}, "Banner Maxx (propiconazole)"},
	{[]string{"lexicon", "fluxapyroxad"}, "Lexicon (fluxapyroxad + pyraclostrobin)"},
	{[]string{"medallion", "fludioxonil"}, "Medallion (fludioxonil)"},
	{[]string{"velista", "penthiopyrad"}, "Velista (penthiopyrad)"},
	{[]string{"posterity", "pydiflumetofen"}, "Posterity (pydiflumetofen)"},
	{[]string{"insignia", "pyraclostrobin"}, "Insignia (pyraclostrobin)"},
	{[]string{"fluazinam"}, "Secure (fluazinam)"},
	{[]string{"headway"}, "Headway (azoxystrobin + propiconazole)"},

	// Herbicides
	{[]string{"tenacity", "mesotrione"}, "Tenacity (mesotrione)"},
	{[]string{"barricade", "prodiamine"}, "Barricade (prodiamine)"},
	{[]string{"dithiopyr"}, "Dimension (dithiopyr)"},
	{[]string{"trifloxysulfuron"}, "Monument (trifloxysulfuron)"},
	{[]string{"sulfosulfuron"}, "Certainty (sulfosulfuron)"},
	{[]string{"specticle", "indaziflam"}, "Specticle (indaziflam)"},
	{[]string{"quinclorac"}, "Drive (quinclorac)"},

	// Growth regulators and insecticides
	{[]string{"primo maxx", "trinexapac"}, "Primo Maxx (trinexapac-ethyl)"},
	{[]string{"trimmit", "paclobutrazol"}, "Trimmit (paclobutrazol)"},
	{[]string{"acelepryn", "chlorantraniliprole"}, "Acelepryn (chlorantraniliprole)"},
	{[]string{"imidacloprid"}, "Merit (imidacloprid)"},
	{[]string{"dylox", "trichlorfon"}, "Dylox (trichlorfon)"},
}

// recommendProducts scans a generated answer for known product mentions.
// Table order is the output order; the list caps at maxRecommendedProducts.
func recommendProducts(answer string) []string {
	if answer == "" {
		return nil
	}
	lower := strings.ToLower(answer)
	tokens := toTokenSet(answer)

	var out []string
	for _, p := range productMentions {
		if !mentionFound(p.matches, lower, tokens) {
			continue
		}
		out = append(out, p.display)
		if len(out) == maxRecommendedProducts {
			break
		}
	}
	return out
}

// mentionFound matches single words on token boundaries and multi-word
// names by substring, so "Banner Maxx" matches but "bannerless" does not.
func mentionFound(matches []string, lower string, tokens map[string]struct{}) bool {
	for _, m := range matches {
		if strings.Contains(m, " ") {
			if strings.Contains(lower, m) {
				return true
			}
			continue
		}
		if _, ok := tokens[m]; ok {
			return true
		}
	}
	return false
}
