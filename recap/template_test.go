package recap

import (
	"errors"
	"maps"
	"slices"
	"testing"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		template string
		scheme   string
		params   []string
		shape    string
	}{
		{"s3://{path:path}", "s3", []string{"path"}, "s3://{:path}"},
		{"S3://{bucket}/{path:path}", "s3", []string{"bucket", "path"}, "s3://{}/{:path}"},
		{"file:///{path:path}", "file", []string{"path"}, "file:///{:path}"},
		{"/{path:path}", "", []string{"path"}, "/{:path}"},
		{"/data/{name:str}", "", []string{"name"}, "/data/{}"},
		{"gs://", "gs", nil, "gs://"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.template)
			if err != nil {
				t.Fatalf("ParseTemplate() error = %v", err)
			}
			if tmpl.Scheme() != tt.scheme {
				t.Errorf("Scheme() = %q, want %q", tmpl.Scheme(), tt.scheme)
			}
			if !slices.Equal(tmpl.Params(), tt.params) {
				t.Errorf("Params() = %v, want %v", tmpl.Params(), tt.params)
			}
			if tmpl.shape() != tt.shape {
				t.Errorf("shape() = %q, want %q", tmpl.shape(), tt.shape)
			}
			if tmpl.String() != tt.template {
				t.Errorf("String() = %q, want %q", tmpl.String(), tt.template)
			}
		})
	}
}

func TestParseTemplate_Invalid(t *testing.T) {
	tests := []string{
		"s3://{path:path}/tail",
		"s3://{a}/{a}",
		"s3://pre{a}",
		"s3://{a}post",
		"s3://{}",
		"s3://{1a}",
		"s3://{a:int}",
		"s3://{a",
		"://{path}",
		"relative/{path}",
	}
	for _, template := range tests {
		t.Run(template, func(t *testing.T) {
			_, err := ParseTemplate(template)
			var te *TemplateError
			if !errors.As(err, &te) {
				t.Fatalf("ParseTemplate() error = %v, want *TemplateError", err)
			}
			if te.Template != template {
				t.Errorf("Template = %q, want %q", te.Template, template)
			}
		})
	}
}

func TestMustParseTemplate_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParseTemplate("s3://{a}/{a}")
}

func TestTemplate_Match(t *testing.T) {
	tests := []struct {
		template string
		url      string
		want     map[string]string
	}{
		{"s3://{path:path}", "s3://bucket/dir/file", map[string]string{"path": "bucket/dir/file"}},
		{"s3://{path:path}", "s3://", map[string]string{"path": ""}},
		{"S3://{path:path}", "s3://b", map[string]string{"path": "b"}},
		{"s3://{bucket}/{path:path}", "S3://b/k/x.csv", map[string]string{"bucket": "b", "path": "k/x.csv"}},
		{"s3://{bucket}/{path:path}", "s3://b", map[string]string{"bucket": "b", "path": ""}},
		{"file:///{path:path}", "file:///data/x.csv", map[string]string{"path": "data/x.csv"}},
		{"/{path:path}", "/data/x.csv", map[string]string{"path": "data/x.csv"}},
		{"/{path:path}", "/", map[string]string{"path": ""}},
		{"/data/{name}", "/data/x", map[string]string{"name": "x"}},

		{"/{path:path}", "s3://b/p", nil},
		{"/{path:path}", "file:///data", nil},
		{"/{path:path}", "data/x", nil},
		{"file:///{path:path}", "/data", nil},
		{"file:///{path:path}", "file://host/data", nil},
		{"s3://{bucket}/{path:path}", "s3://", nil},
		{"gs://{path:path}", "s3://b", nil},
		{"/data/{name}", "/data/x/y", nil},
		{"/data/{name}", "/data/", nil},
		{"/data/{name}", "/other/x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.template+" "+tt.url, func(t *testing.T) {
			params, _, ok := MustParseTemplate(tt.template).match(parseLocation(tt.url))
			if ok != (tt.want != nil) {
				t.Fatalf("match() ok = %v, want %v", ok, tt.want != nil)
			}
			if ok && !maps.Equal(params, tt.want) {
				t.Errorf("params = %v, want %v", params, tt.want)
			}
		})
	}
}

func TestTemplate_Specificity(t *testing.T) {
	loc := parseLocation("/data/raw/x.csv")
	score := func(template string) specificity {
		_, sp, ok := MustParseTemplate(template).match(loc)
		if !ok {
			t.Fatalf("%s does not match", template)
		}
		return sp
	}

	generic := score("/{path:path}")
	data := score("/data/{path:path}")
	dataRaw := score("/data/raw/{path:path}")

	if data.compare(generic) <= 0 || dataRaw.compare(data) <= 0 {
		t.Errorf("specificity not ordered: generic=%v data=%v dataRaw=%v", generic, data, dataRaw)
	}
}

func TestParseLocation_ResolvedScheme(t *testing.T) {
	tests := map[string]string{
		"/data":        "file",
		"file:///data": "file",
		"S3://b":       "s3",
		"gs://b/k":     "gs",
	}
	for url, want := range tests {
		if got := parseLocation(url).resolvedScheme(); got != want {
			t.Errorf("resolvedScheme(%q) = %q, want %q", url, got, want)
		}
	}
}
