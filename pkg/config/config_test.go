package config

import (
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	if got := cfg.WAL.DataOffset(); got != HeaderSize+DefaultReserved {
		t.Fatalf("data offset = %d, want %d", got, HeaderSize+DefaultReserved)
	}
	if !cfg.WAL.Versioned || cfg.WAL.Path == "" {
		t.Fatalf("binary defaults should describe a versioned file log: %+v", cfg.WAL)
	}
	if got := DefaultOptions().DataOffset(); got != HeaderSize {
		t.Fatalf("library data offset = %d, want %d", got, HeaderSize)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		ok     bool
	}{
		{"default", func(o *Options) {}, true},
		{"capacity equals header", func(o *Options) { o.Capacity = HeaderSize }, false},
		{"reserved eats capacity", func(o *Options) { o.Capacity = 64; o.Reserved = 56 }, false},
		{"reserved fits", func(o *Options) { o.Capacity = 64; o.Reserved = 16 }, true},
		{"zero key size", func(o *Options) { o.MaximumKeySize = 0 }, false},
		{"zero value size", func(o *Options) { o.MaximumValueSize = 0 }, false},
		{"btree backend", func(o *Options) { o.IndexBackend = IndexBTree }, true},
		{"unknown backend", func(o *Options) { o.IndexBackend = "rbtree" }, false},
		{"crc64", func(o *Options) { o.Checksum = ChecksumCRC64 }, true},
		{"unknown checksum", func(o *Options) { o.Checksum = "md5" }, false},
		{"read-only in memory", func(o *Options) { o.ReadOnly = true }, false},
		{"negative queue", func(o *Options) { o.FlushQueueSize = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestConfigValidateLevel(t *testing.T) {
	cfg := Default()
	cfg.Logger.Level = "TRACE"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
