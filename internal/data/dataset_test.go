package data

import (
	"strings"
	"testing"

	"github.com/TomasB/geoalloc/internal/cidr"
	"github.com/TomasB/geoalloc/internal/ipaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataset(t *testing.T) {
	input := strings.Join([]string{
		"network,geoname_id,registered_country_geoname_id,country_code,country_name,state_code,state_name",
		"",
		"203.0.113.0/24,1,2,US,United States,CA,California",
		"   ",
		"2001:db8::/32,1,2,DE,Germany,,",
		`198.51.100.0/25,1,2,KR,"Korea, Republic of",11,Seoul`,
	}, "\r\n")

	records, err := ParseDataset(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "203.0.113.0/24", first.Network)
	assert.Equal(t, "US", first.CountryCode)
	assert.Equal(t, "United States", first.CountryName)
	assert.Equal(t, "CA", first.StateCode)
	assert.Equal(t, "California", first.StateName)
	assert.Equal(t, ipaddr.MustParse("203.0.113.0"), first.Start)
	assert.Equal(t, ipaddr.MustParse("203.0.113.255"), first.End)

	second := records[1]
	assert.Equal(t, ipaddr.IPv6, second.Start.Family())
	assert.Empty(t, second.StateCode)
	assert.Empty(t, second.StateName)

	assert.Equal(t, "Korea, Republic of", records[2].CountryName)
}

func TestParseDataset_BareQuoteInField(t *testing.T) {
	records, err := ParseRows([]string{
		`1.2.3.0/24,0,0,CI,Cote d"Ivoire,,`,
		`5.6.7.0/24,0,0,US,United States,HI,Hawai"i`,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `Cote d"Ivoire`, records[0].CountryName)
	assert.Equal(t, "CI", records[0].CountryCode)
	assert.Equal(t, `Hawai"i`, records[1].StateName)
}

func TestParseDataset_Empty(t *testing.T) {
	records, err := ParseDataset(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ParseRows([]string{"network,a,b,c,d,e,f"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseDataset_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		wantErr error
		line    string
	}{
		{
			name:    "prefix exceeds IPv4 width",
			rows:    []string{"203.0.113.0/33,1,2,US,United States,CA,California"},
			wantErr: cidr.ErrInvalidCIDR,
			line:    "line 1",
		},
		{
			name:    "too few fields",
			rows:    []string{"network,a,b,c,d,e,f", "203.0.113.0/24,1,2,US"},
			wantErr: ErrDatasetLoad,
			line:    "line 2",
		},
		{
			name:    "too many fields",
			rows:    []string{"203.0.113.0/24,1,2,US,United States,CA,California,extra"},
			wantErr: ErrDatasetLoad,
			line:    "line 1",
		},
		{
			name:    "missing prefix",
			rows:    []string{"203.0.113.0/24,1,2,US,United States,CA,California", "203.0.113.0,1,2,US,United States,CA,California"},
			wantErr: cidr.ErrInvalidCIDR,
			line:    "line 2",
		},
		{
			name:    "signed prefix",
			rows:    []string{"1.2.3.0/+24,0,0,US,United States,CA,California"},
			wantErr: cidr.ErrInvalidCIDR,
			line:    "line 1",
		},
		{
			name:    "bad address",
			rows:    []string{"2001:zz8::/32,1,2,US,United States,CA,California"},
			wantErr: ipaddr.ErrInvalidAddress,
			line:    "line 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRows(tt.rows)
			require.Error(t, err)
			assert.Nil(t, records)
			assert.ErrorIs(t, err, ErrDatasetLoad)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestParseDataset_HeaderMustMatchExactly(t *testing.T) {
	// "networks" is not the header token, so the row is parsed and rejected.
	_, err := ParseRows([]string{"networks,a,b,c,d,e,f"})
	assert.ErrorIs(t, err, ErrDatasetLoad)
}
