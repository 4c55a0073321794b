package github

import (
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

func newFakeResponse(status int, header http.Header) *resty.Response {
	return &resty.Response{
		RawResponse: &http.Response{StatusCode: status, Header: header},
	}
}

func jsonEscapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
