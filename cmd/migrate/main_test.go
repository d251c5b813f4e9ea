package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/config"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		bigQuery bool
		wantErr  bool
		wantOut  string
	}{
		{
			name:    "memory store",
			cfg:     config.Config{StoreURI: "memory://"},
			wantOut: "Record store is up to date.\n",
		},
		{
			name:    "unsupported scheme",
			cfg:     config.Config{StoreURI: "sqlite:///tmp/x.db"},
			wantErr: true,
		},
		{
			name:     "bigquery without project",
			cfg:      config.Config{StoreURI: "memory://", BigQuery: config.BigQuery{Dataset: "finance", Table: "transactions"}},
			bigQuery: true,
			wantErr:  true,
			wantOut:  "Record store is up to date.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), &tt.cfg, tt.bigQuery, zerolog.Nop(), &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if out.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}
