// submission/multipart.go
package submission

import (
	"errors"
	"io"
	"mime/multipart"
)

// ParseMultipart decodes a multipart/form-data body in part order. File
// parts are skipped; the contact form carries no attachments.
func ParseMultipart(r io.Reader, boundary string) (Fields, error) {
	mr := multipart.NewReader(r, boundary)
	var out Fields
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		name := part.FormName()
		if name == "" || part.FileName() != "" {
			_ = part.Close()
			continue
		}
		b, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		out.Set(name, string(b))
	}
}
