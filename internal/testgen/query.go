package testgen

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"github.com/campusrag/advisor/internal/filter"
)

// Estonian (plus a few English) stopwords excluded from topic keywords.
var stopwords = map[string]bool{
	"ja": true, "või": true, "ning": true, "kui": true, "kas": true,
	"et": true, "see": true, "selle": true, "seda": true, "need": true,
	"neid": true, "kursus": true, "kursuse": true, "õppeaine": true,
	"õppeaines": true, "sissejuhatus": true, "alused": true, "i": true,
	"ii": true, "the": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "for": true, "an": true, "a": true,
}

var queryTemplates = []string{
	"Olen valimas aineid. Soovita %d kursust%s%s Iga soovituse juurde lisa: kood, 1-2 lauset miks see sobib, ja mida eeldatakse eelteadmistena.",
	"Palun koosta lühike shortlist: %d sobivaimat kursust%s%s Väldi liiga teoreetilisi aineid; eelista praktilisi.",
	"Soovita %d kursust%s%s Kui täpselt ei leia, paku lähimad alternatiivid ja ütle miks.",
	"Mul on vaja semestriplaani. Leia %d kursust%s%s nii, et töökoormus oleks mõistlik. Lisa iga kursuse juurde ka võimalik risk (nt raske matemaatika, palju rühmatööd).",
	"Soovita %d kursust%s%s Palun ära paku kursusi, mis on täiesti algtaseme sissejuhatused, kui on võimalik midagi sisukamat samas teemas.",
}

var constraintJoiners = []string{
	" tingimustega: ",
	" filtritega: ",
	" järgmiste piirangutega: ",
	" (soovid: ",
}

// makeQuery phrases a user query around the course topic and the active
// constraints, varying template, count and wording through rng.
func makeQuery(rng *rand.Rand, preds filter.Predicates, title string) string {
	n := []int{2, 3, 4, 5}[rng.Intn(4)]

	topic := ""
	if kws := extractKeywords(rng, title, 1+rng.Intn(2)); len(kws) > 0 {
		switch rng.Intn(3) {
		case 0:
			topic = fmt.Sprintf(" teemal '%s'", strings.Join(kws, " / "))
		case 1:
			topic = fmt.Sprintf(" mis seostuvad teemadega %s", strings.Join(kws, ", "))
		default:
			topic = fmt.Sprintf(" valdkonnas %s", strings.Join(kws, ", "))
		}
	}

	return fmt.Sprintf(queryTemplates[rng.Intn(len(queryTemplates))],
		n, topic, constraintText(rng, preds))
}

// constraintText renders the set predicates as an Estonian constraint
// clause, ending the sentence.
func constraintText(rng *rand.Rand, preds filter.Predicates) string {
	var parts []string
	if preds.Credits != "" {
		parts = append(parts, preds.Credits+" EAP")
	}
	if preds.Language != "" {
		parts = append(parts, estLanguage(preds.Language)+" keeles")
	}
	if preds.Semester != "" {
		parts = append(parts, estSemester(preds.Semester))
	}
	if preds.Level != "" {
		if lv := estLevel(preds.Level); lv != "" {
			parts = append(parts, lv)
		}
	}
	if len(parts) == 0 {
		return "."
	}

	joiner := constraintJoiners[rng.Intn(len(constraintJoiners))]
	tail := strings.Join(parts, ", ")
	if strings.HasSuffix(strings.TrimSpace(joiner), "(") {
		return joiner + tail + ")."
	}
	return joiner + tail + "."
}

// extractKeywords pulls up to k distinct topic words from a course title,
// skipping stopwords and short tokens.
func extractKeywords(rng *rand.Rand, title string, k int) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	seen := make(map[string]bool)
	var uniq []string
	for _, f := range fields {
		w := strings.ToLower(strings.Trim(f, "-"))
		if w == "" || stopwords[w] || len([]rune(w)) < 4 || seen[w] {
			continue
		}
		seen[w] = true
		uniq = append(uniq, w)
	}
	if len(uniq) == 0 {
		return nil
	}

	rng.Shuffle(len(uniq), func(i, j int) { uniq[i], uniq[j] = uniq[j], uniq[i] })
	if len(uniq) > k {
		uniq = uniq[:k]
	}
	return uniq
}

func estLanguage(code string) string {
	switch code {
	case "en":
		return "inglise"
	case "et":
		return "eesti"
	default:
		return "võõrkeele"
	}
}

func estSemester(code string) string {
	switch code {
	case "autumn":
		return "sügissemester"
	case "spring":
		return "kevadsemester"
	default:
		return "semester"
	}
}

func estLevel(code string) string {
	switch code {
	case "bachelor":
		return "bakalaureusele"
	case "master":
		return "magistrile"
	case "doctoral":
		return "doktoriõppele"
	default:
		return ""
	}
}
