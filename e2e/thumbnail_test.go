package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tuneedit/api/internal/handler"
	"github.com/tuneedit/api/internal/thumbnail/thumbtest"
)

func jpegFile(w, h int) uploadFile {
	return uploadFile{name: "cover.jpg", contentType: "image/jpeg", data: thumbtest.JPEG(w, h)}
}

func TestUploadThumbnail(t *testing.T) {
	ta := setupApp(t)
	id, token := ta.launch(t, launchQuery)

	resp, err := doUpload(ta.app, token, "/api/sessions/"+id+"/thumbnail", jpegFile(128, 128))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	preview, _ := field(body, "effective", "thumbnailPreview").(string)
	if !strings.HasPrefix(preview, "data:image/jpeg;base64,") {
		t.Errorf("expected inline preview, got %.40q", preview)
	}
	if field(body, "effective", "hasStagedThumbnail") != true || field(body, "isChanged") != true {
		t.Errorf("expected staged thumbnail, got %v", body)
	}
}

func TestUploadThumbnail_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		files  []uploadFile
		reason string
	}{
		{"not square", []uploadFile{jpegFile(128, 100)}, "not-square"},
		{"too narrow", []uploadFile{jpegFile(48, 48)}, "width-out-of-range"},
		{"too wide", []uploadFile{jpegFile(400, 400)}, "width-out-of-range"},
		{"too large", []uploadFile{{name: "big.jpg", contentType: "image/jpeg", data: thumbtest.Inflate(thumbtest.JPEG(128, 128), 210*1024)}}, "file-too-large"},
		{"corrupt", []uploadFile{{name: "bad.jpg", contentType: "image/jpeg", data: []byte("garbage")}}, "corrupt-image"},
		{"png", []uploadFile{{name: "x.png", contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\n")}}, "wrong-media-type"},
		{"two files", []uploadFile{jpegFile(100, 100), jpegFile(100, 100)}, "too-many-files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := setupApp(t)
			id, token := ta.launch(t, launchQuery)

			resp, err := doUpload(ta.app, token, "/api/sessions/"+id+"/thumbnail", tt.files...)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}

			assertStatus(t, resp, http.StatusBadRequest)
			body := parseJSON(t, resp)
			if got := field(body, "error", "details", "reason"); got != tt.reason {
				t.Errorf("expected reason %s, got %v", tt.reason, got)
			}
			if msg, _ := field(body, "error", "details", "message").(string); msg == "" {
				t.Error("expected a user-facing message")
			}

			// the form is untouched
			resp, err = doAuthRequest(ta.app, token, http.MethodGet, "/api/sessions/"+id, "")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			state := parseJSON(t, resp)
			if field(state, "isChanged") != false {
				t.Errorf("rejected upload changed the form: %v", state)
			}
		})
	}
}

func TestUploadThumbnail_NoFile(t *testing.T) {
	ta := setupApp(t)
	id, token := ta.launch(t, launchQuery)

	resp, err := doUpload(ta.app, token, "/api/sessions/"+id+"/thumbnail")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	if body := parseJSON(t, resp); field(body, "isChanged") != false {
		t.Errorf("empty selection must not change the form: %v", body)
	}
}

func TestClearThumbnail(t *testing.T) {
	ta := setupApp(t)
	id, token := ta.launch(t, launchQuery)

	resp, err := doUpload(ta.app, token, "/api/sessions/"+id+"/thumbnail", jpegFile(128, 128))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doAuthRequest(ta.app, token, http.MethodDelete, "/api/sessions/"+id+"/thumbnail", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if field(body, "effective", "thumbnailPreview") != "" {
		t.Errorf("expected empty preview, got %v", field(body, "effective", "thumbnailPreview"))
	}
	if field(body, "effective", "hasStagedThumbnail") != false {
		t.Error("staged file must be discarded")
	}
	if field(body, "isChanged") != true {
		t.Error("clearing an existing thumbnail is a change")
	}
}

func TestUploadThumbnail_OversizeChecksSelectionFirst(t *testing.T) {
	huge := thumbtest.Inflate(thumbtest.JPEG(128, 128), handler.MaxUploadSize+10)
	hugePNG := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, handler.MaxUploadSize+10)...)

	tests := []struct {
		name   string
		files  []uploadFile
		reason string
	}{
		{"oversize jpeg", []uploadFile{{name: "huge.jpg", contentType: "image/jpeg", data: huge}}, "file-too-large"},
		{"oversize png", []uploadFile{{name: "huge.png", contentType: "image/png", data: hugePNG}}, "wrong-media-type"},
		{"oversize first of two", []uploadFile{{name: "huge.jpg", contentType: "image/jpeg", data: huge}, jpegFile(100, 100)}, "too-many-files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := setupApp(t)
			id, token := ta.launch(t, launchQuery)

			resp, err := doUpload(ta.app, token, "/api/sessions/"+id+"/thumbnail", tt.files...)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}

			assertStatus(t, resp, http.StatusBadRequest)
			body := parseJSON(t, resp)
			if got := field(body, "error", "details", "reason"); got != tt.reason {
				t.Errorf("expected reason %s, got %v", tt.reason, got)
			}
		})
	}
}
