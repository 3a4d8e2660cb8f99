package embcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Signature identifies one version of the document corpus plus the embedding
// model used. Any field change invalidates the cache and forces a full
// rebuild; there is no partial diffing of individual rows.
type Signature struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	MtimeNS    int64  `json:"mtime_ns"`
	Model      string `json:"model"`
	TextColumn string `json:"text_col"`
}

// FileSignature computes the signature for the given corpus source file,
// model and text column.
func FileSignature(path, model, textColumn string) (Signature, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Signature{}, fmt.Errorf("stat corpus %s: %w", path, err)
	}
	return Signature{
		Path:       path,
		Size:       st.Size(),
		MtimeNS:    st.ModTime().UnixNano(),
		Model:      model,
		TextColumn: textColumn,
	}, nil
}

// readSignature loads the persisted signature from the cache directory.
func readSignature(dir string) (Signature, error) {
	data, err := os.ReadFile(filepath.Join(dir, signatureFile))
	if err != nil {
		return Signature{}, err
	}
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return Signature{}, fmt.Errorf("parsing cache signature: %w", err)
	}
	return sig, nil
}

// valid reports whether the cache directory holds a complete cache built for
// exactly the given signature.
func valid(dir string, sig Signature) bool {
	for _, name := range []string{vectorsFile, idsFile, signatureFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	old, err := readSignature(dir)
	if err != nil {
		return false
	}
	return old == sig
}
