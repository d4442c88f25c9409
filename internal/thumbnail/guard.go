package thumbnail

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AcceptedMediaTypes are the picker's accepted types. image/jpg is not a
// registered type but some clients send it.
var AcceptedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
}

// Candidate is one file offered by the picker.
type Candidate struct {
	Name         string
	DeclaredType string
	Data         []byte
}

// Size is the file's byte size.
func (c Candidate) Size() int64 {
	return int64(len(c.Data))
}

// MediaType is the declared type when the client sent a usable one, else
// the type sniffed from the content.
func (c Candidate) MediaType() string {
	declared := strings.ToLower(strings.TrimSpace(c.DeclaredType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(c.Data).String()
}

// CheckSelection is the picker-level guard that runs before any decoding.
// Media types are checked file by file, then the count. An empty selection
// is not an error; there is simply nothing to stage.
func CheckSelection(files []Candidate) *Rejection {
	for _, f := range files {
		if !AcceptedMediaTypes[f.MediaType()] {
			return &Rejection{Reason: ReasonWrongMediaType}
		}
	}
	if len(files) > 1 {
		return &Rejection{Reason: ReasonTooManyFiles}
	}
	return nil
}
