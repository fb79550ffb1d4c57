package sensors

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestThermalZone(t *testing.T) {
	path := writeFile(t, "temp", "48312\n")
	got, err := ThermalZone{Path: path}.ReadCelsius()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 48.312 {
		t.Errorf("got %v, want 48.312", got)
	}
}

func TestThermalZoneErrors(t *testing.T) {
	if _, err := (ThermalZone{Path: filepath.Join(t.TempDir(), "missing")}).ReadCelsius(); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeFile(t, "temp", "hot")
	if _, err := (ThermalZone{Path: path}).ReadCelsius(); err == nil {
		t.Error("expected error for unparsable value")
	}
}

func TestGPSFile(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	path := writeFile(t, "locGPS", `{"location":{"lat":37.7749,"lng":-122.4194},"spd":52.3,"error":false}`)

	p, err := GPSFile{Path: path, Now: func() time.Time { return fixed }}.ReadFix()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !p.Retainable() {
		t.Fatal("expected retainable fix")
	}
	if p.Lat.Value != 37.7749 || p.Lng.Value != -122.4194 {
		t.Errorf("coords: got %v,%v", p.Lat.Value, p.Lng.Value)
	}
	if !p.SpeedKmh.Valid || p.SpeedKmh.Value != 52.3 {
		t.Errorf("speed: got %+v", p.SpeedKmh)
	}
	if p.FixedAt != fixed.UnixMilli() {
		t.Errorf("fixedAt: got %d", p.FixedAt)
	}
}

func TestGPSFileMissingSpeed(t *testing.T) {
	path := writeFile(t, "locGPS", `{"location":{"lat":1,"lng":2}}`)
	p, err := GPSFile{Path: path}.ReadFix()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if p.SpeedKmh.Valid {
		t.Error("missing speed should be unavailable")
	}
}

func TestGPSFileNoFix(t *testing.T) {
	tests := map[string]string{
		"error string": `{"error":"no satellites"}`,
		"error true":   `{"error":true,"location":{"lat":1,"lng":2}}`,
		"no location":  `{"spd":0}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "locGPS", body)
			_, err := GPSFile{Path: path}.ReadFix()
			if !errors.Is(err, ErrNoFix) {
				t.Errorf("expected ErrNoFix, got %v", err)
			}
		})
	}
}

func TestGPSFileCorrupt(t *testing.T) {
	path := writeFile(t, "locGPS", `{"location":`)
	if _, err := (GPSFile{Path: path}).ReadFix(); err == nil || errors.Is(err, ErrNoFix) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestFakeLocator(t *testing.T) {
	var empty FakeLocator
	if _, err := empty.ReadFix(); !errors.Is(err, ErrNoFix) {
		t.Errorf("expected ErrNoFix from empty fake, got %v", err)
	}
}
