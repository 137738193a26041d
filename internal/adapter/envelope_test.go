package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/apperrors"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantData string
		wantErr  string
	}{
		{
			name:     "wm success",
			body:     `{"ret":0,"sub":0,"msg":"successfully","data":{"k":1}}`,
			wantData: `{"k":1}`,
		},
		{
			name:     "hy success",
			body:     `{"resultCode":"0","resultDesc":"OK","resultData":[1,2]}`,
			wantData: `[1,2]`,
		},
		{
			name:     "bare data without marker",
			body:     `{"data":[1]}`,
			wantData: `[1]`,
		},
		{
			name:    "wm rejection keeps raw codes",
			body:    `{"ret":-1,"sub":4004,"msg":"该影院暂不支持"}`,
			wantErr: "business",
		},
		{
			name:    "wm sub rejection with ret zero",
			body:    `{"ret":0,"sub":408,"msg":"token timeout"}`,
			wantErr: "business",
		},
		{
			name:    "hy rejection",
			body:    `{"resultCode":"1","resultDesc":"参数错误"}`,
			wantErr: "business",
		},
		{
			name:    "not json",
			body:    `<html>502</html>`,
			wantErr: "normalization",
		},
		{
			name:    "unknown wrapper",
			body:    `{"status":"ok"}`,
			wantErr: "normalization",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodeEnvelope("test", tenant.TenantWM, []byte(tt.body))
			switch tt.wantErr {
			case "":
				require.NoError(t, err)
				assert.JSONEq(t, tt.wantData, string(data))
			case "business":
				var be *apperrors.BusinessError
				require.ErrorAs(t, err, &be)
			case "normalization":
				var ne *apperrors.NormalizationError
				require.ErrorAs(t, err, &ne)
			}
		})
	}
}

func TestDecodeEnvelopeRejectionCodesSurviveVerbatim(t *testing.T) {
	_, err := decodeEnvelope("test", tenant.TenantWM, []byte(`{"ret":-1,"sub":4004,"msg":"cinema restricted"}`))
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "-1", be.Code)
	assert.Equal(t, "4004", be.Sub)
	assert.Equal(t, "cinema restricted", be.Message)
}

func TestDecodeEnvelopeNormalizationRecordsSizeNotContent(t *testing.T) {
	body := []byte(`{"secret_token":"abc123","status":"ok"}`)
	_, err := decodeEnvelope("test", tenant.TenantHY, body)

	var ne *apperrors.NormalizationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, len(body), ne.PayloadSize)
	assert.NotContains(t, ne.Error(), "abc123")
}

func TestDecodeList(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		records, err := decodeList("cities", tenant.TenantHY, []byte(`[{"id":"1"},{"id":"2"}]`))
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("hot and normal buckets merge hot-first", func(t *testing.T) {
		payload := []byte(`{"hot":[{"city_id":"10"}],"normal":[{"city_id":"20"},{"city_id":"10"}]}`)
		records, err := decodeList("cities", tenant.TenantWM, payload)
		require.NoError(t, err)
		require.Len(t, records, 3)

		deduped := dedupBy(records, cityIDAliases)
		require.Len(t, deduped, 2)
		assert.Equal(t, "10", deduped[0].str("city_id"))
		assert.Equal(t, "20", deduped[1].str("city_id"))
	})

	t.Run("named key", func(t *testing.T) {
		records, err := decodeList("cities", tenant.TenantWM, []byte(`{"citys":[{"id":"1"}]}`), "citys", "list")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("no list anywhere", func(t *testing.T) {
		_, err := decodeList("cities", tenant.TenantWM, []byte(`{"total":0}`), "citys")
		var ne *apperrors.NormalizationError
		assert.ErrorAs(t, err, &ne)
	})
}

func TestRecordPriceCents(t *testing.T) {
	tests := []struct {
		name   string
		tenant string
		json   string
		want   int64
	}{
		{"wm integer cents", tenant.TenantWM, `{"sale_price":3900}`, 3900},
		{"wm small integer cents", tenant.TenantWM, `{"sale_price":990}`, 990},
		{"wm integer cents string", tenant.TenantWM, `{"sale_price":"3900"}`, 3900},
		{"wm decimal yuan string", tenant.TenantWM, `{"sale_price":"0.00"}`, 0},
		{"hy decimal yuan string", tenant.TenantHY, `{"sale_price":"39.9"}`, 3990},
		{"hy decimal yuan number", tenant.TenantHY, `{"sale_price":39.5}`, 3950},
		{"hy whole yuan number", tenant.TenantHY, `{"sale_price":40}`, 4000},
		{"hy whole yuan string", tenant.TenantHY, `{"sale_price":"40"}`, 4000},
		{"missing", tenant.TenantWM, `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := mustRecord(t, tt.json)
			assert.Equal(t, tt.want, rec.priceCents(tt.tenant, sessionPriceAliases...))
		})
	}
}
