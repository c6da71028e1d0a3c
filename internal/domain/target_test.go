package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			name: "cidr includes network and broadcast",
			expr: "10.0.0.0/30",
			want: []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
		{
			name: "cidr with host bits is masked",
			expr: "192.168.1.77/31",
			want: []string{"192.168.1.76", "192.168.1.77"},
		},
		{
			name: "cidr single host",
			expr: "172.16.0.9/32",
			want: []string{"172.16.0.9"},
		},
		{
			name: "final octet range",
			expr: "10.0.0.1-3",
			want: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
		{
			name: "range with equal bounds",
			expr: "10.0.0.7-7",
			want: []string{"10.0.0.7"},
		},
		{
			name: "reversed range is empty",
			expr: "10.0.0.5-3",
			want: nil,
		},
		{
			name: "range past 255 is empty",
			expr: "10.0.0.250-300",
			want: nil,
		},
		{
			name: "range with short base is empty",
			expr: "10.0.1-3",
			want: nil,
		},
		{
			name: "comma list kept verbatim",
			expr: "a,b",
			want: []string{"a", "b"},
		},
		{
			name: "comma list trims and drops blanks",
			expr: " 10.0.0.1 , ,10.0.0.9",
			want: []string{"10.0.0.1", "10.0.0.9"},
		},
		{
			name: "single address",
			expr: " 10.9.8.7 ",
			want: []string{"10.9.8.7"},
		},
		{
			name: "malformed cidr",
			expr: "10.0.0.0/33",
			want: nil,
		},
		{
			name: "ipv6 cidr unsupported",
			expr: "fe80::/126",
			want: nil,
		},
		{
			name: "blank",
			expr: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTargets(tt.expr)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTargets(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseTargetsFullSubnet(t *testing.T) {
	got := ParseTargets("192.168.10.0/24")
	if len(got) != 256 {
		t.Fatalf("expected 256 targets, got %d", len(got))
	}
	if got[0] != "192.168.10.0" || got[255] != "192.168.10.255" {
		t.Errorf("unexpected bounds %s .. %s", got[0], got[255])
	}
}

func TestParseTargetsTopOfAddressSpace(t *testing.T) {
	got := ParseTargets("255.255.255.254/31")
	want := []string{"255.255.255.254", "255.255.255.255"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseTargetsLimit(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		limit   int
		wantLen int
		wantErr error
	}{
		{"within limit", "10.0.0.0/24", 256, 256, nil},
		{"prefix over limit", "10.0.0.0/8", 65536, 0, ErrTooManyTargets},
		{"list over limit", "a,b,c", 2, 0, ErrTooManyTargets},
		{"invalid", "10.0.0.9-1", 10, 0, ErrInvalidRange},
		{"empty", "", 10, 0, ErrInvalidRange},
		{"no limit", "10.0.0.0/16", 0, 65536, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetsLimit(tt.expr, tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
