package storageio

import "testing"

func TestS3ExpressZone(t *testing.T) {
	tests := []struct {
		bucket   string
		wantZone string
		wantOK   bool
	}{
		{"my-bucket--use1-az4--x-s3", "use1-az4", true},
		{"plain-regional-bucket", "", false},
		{"no-zone--x-s3", "", false},
		{"a--b--x-s3", "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			zone, ok := s3ExpressZone(tt.bucket)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if zone != tt.wantZone {
				t.Errorf("zone = %q, want %q", zone, tt.wantZone)
			}
		})
	}
}
