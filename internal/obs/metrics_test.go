package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                      "/",
		"/metrics":                              "/metrics",
		"/v1/applications/abc":                  "/v1/applications/:id",
		"/v1/applications/abc/sections/company": "/v1/applications/:id/sections/:key",
		"/v1/applications/abc/documents":        "/v1/applications/:id/documents",
		"/v1/documents/doc-1/url":               "/v1/documents/:id/url",
		"/v1/admin/applications?status=draft":   "/v1/admin/applications",
		"/files/app-1/company/123_deck.pdf":     "/files/:path",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
