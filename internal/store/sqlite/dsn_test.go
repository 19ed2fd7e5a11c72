package sqlite

import "testing"

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{name: "relative path", dsn: "sqlite://setcraft.db", want: "./setcraft.db"},
		{name: "already anchored", dsn: "sqlite://./setcraft.db", want: "./setcraft.db"},
		{name: "absolute path", dsn: "sqlite:///var/lib/setcraft.db", want: "/var/lib/setcraft.db"},
		{name: "in-memory", dsn: "sqlite://:memory:", want: ":memory:"},
		{name: "query string preserved", dsn: "sqlite://setcraft.db?mode=ro", want: "./setcraft.db?mode=ro"},
		{name: "escaped path", dsn: "sqlite://my%20project.db", want: "./my project.db"},
		{name: "wrong scheme", dsn: "postgres://localhost/setcraft", wantErr: true},
		{name: "empty path", dsn: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDSN(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}
