package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://rent-imports/2024/march.csv", "rent-imports", "2024/march.csv", false},
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"gs:///file.csv", "", "", true},
		{"s3://bucket/file.csv", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q", bucket, object)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/imports/job-1/payments.csv", "payments.csv"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestImportObjectName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"march.csv", "imports/job-1/march.csv"},
		{"../../etc/passwd", "imports/job-1/passwd"},
		{`C:\Users\me\pay.csv`, "imports/job-1/pay.csv"},
		{"", "imports/job-1/payments.csv"},
	}
	for _, tt := range tests {
		if got := ImportObjectName("job-1", tt.filename); got != tt.want {
			t.Errorf("ImportObjectName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
