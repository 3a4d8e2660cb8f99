package catalog

// Candidate column names for each logical field. University catalog exports
// vary between the flattened raw form (version__target__...) and the cleaned
// form, so every field is resolved against an ordered candidate list and the
// first present column wins.
var (
	idCandidates       = []string{"course_uuid", "uuid", "id"}
	textCandidates     = []string{"document_text", "text", "content"}
	codeCandidates     = []string{"code", "course_code"}
	creditsCandidates  = []string{"credits", "version__credits", "eap"}
	semesterCandidates = []string{"version__target__semester__code", "semester", "semester_code"}
	languageCandidates = []string{"version__target__language__code", "language", "lang"}
	levelCandidates    = []string{"study_levels__codes", "version__additional_info__study_levels__codes", "study_level"}
	titleCandidates    = []string{"version__title__et", "version__title__en", "title", "name", "course_name", "course_title"}
)

// firstExistingCol returns the index of the first candidate present in the
// header, or -1 if none match.
func firstExistingCol(header []string, candidates []string) int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}
	for _, c := range candidates {
		if i, ok := pos[c]; ok {
			return i
		}
	}
	return -1
}
