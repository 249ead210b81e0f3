package erp

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func TestRecord_Time(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw     any
		want    time.Time
		wantErr bool
	}{
		"erp timestamp with micros": {
			raw:  "2024-03-01 10:20:30.123456",
			want: time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC),
		},
		"erp timestamp without fraction": {
			raw:  "2024-03-01 10:20:30",
			want: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		"rfc3339": {
			raw:  "2024-03-01T10:20:30Z",
			want: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		"missing": {
			raw:     nil,
			wantErr: true,
		},
		"garbage": {
			raw:     "yesterday",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := Record{"modified": tc.raw}.Time("modified")

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			}
		})
	}
}

func TestRecord_Accessors(t *testing.T) {
	t.Parallel()

	rec := Record{
		"name":          "ITEM-1",
		"standard_rate": 12.5,
		"actual_qty":    "7",
		"disabled":      0,
		"items": []any{
			map[string]any{"against_sales_order": "SO-1"},
			"ignored",
		},
	}

	require.Equal(t, "ITEM-1", rec.Name())
	require.Equal(t, "12.5", rec.String("standard_rate"))

	rate, ok := rec.Float("standard_rate")
	require.True(t, ok)
	require.InDelta(t, 12.5, rate, 0.0001)

	qty, ok := rec.Float("actual_qty")
	require.True(t, ok)
	require.InDelta(t, 7, qty, 0.0001)

	_, ok = rec.Float("missing")
	require.False(t, ok)

	require.False(t, rec.Flag("disabled"))
	require.Len(t, rec.Records("items"), 1)
	require.Equal(t, "SO-1", rec.Records("items")[0].String("against_sales_order"))
}

func TestFilter_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := Filter{Field: "gst_hsn_code", Value: "1234AB"}.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `["gst_hsn_code","=","1234AB"]`, string(b))
}

func TestLookup_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "name=Shoes", ByName("Shoes").String())
	require.Equal(t, "custom_external_id=p1", ByExternalID("p1").String())
}

func TestRecord_TimeIn(t *testing.T) {
	t.Parallel()

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := map[string]struct {
		raw  string
		want time.Time
	}{
		"naive timestamp is read in the zone": {
			raw:  "2026-04-01 17:30:00",
			want: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		},
		"offset is kept": {
			raw:  "2026-04-01T17:30:00Z",
			want: time.Date(2026, 4, 1, 17, 30, 0, 0, time.UTC),
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := Record{"modified": tc.raw}.TimeIn("modified", kolkata)
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestCredentials_TimeZone(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		zone     string
		wantErr  bool
		wantZone string
	}{
		"unset is UTC": {
			wantZone: "UTC",
		},
		"named zone": {
			zone:     "Asia/Kolkata",
			wantZone: "Asia/Kolkata",
		},
		"unknown zone": {
			zone:     "Mars/Olympus",
			wantErr:  true,
			wantZone: "UTC",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			creds := Credentials{APIKey: "key", APISecret: "secret", BaseURL: "https://erp.example.com", TimeZone: tc.zone}

			err := creds.Validate()
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid time zone")
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.wantZone, creds.Location().String())
		})
	}
}
