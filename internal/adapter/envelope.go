package adapter

import (
	"encoding/json"
	"strconv"

	"github.com/cinetick/cinetick/pkg/apperrors"
)

// The two backend families wrap payloads differently:
//
//	WM: {"ret": 0, "sub": 0, "msg": "successfully", "data": ...}
//	HY: {"resultCode": "0", "resultDesc": "OK", "resultData": ...}
//
// decodeEnvelope branches on which marker field is present rather than on the
// tenant id, so a tenant migrating formats keeps working.

type wmEnvelope struct {
	Ret  *int            `json:"ret"`
	Sub  int             `json:"sub"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type hyEnvelope struct {
	ResultCode string          `json:"resultCode"`
	ResultDesc string          `json:"resultDesc"`
	ResultData json.RawMessage `json:"resultData"`
}

// decodeEnvelope validates the wrapper and returns the inner payload. A
// backend rejection becomes a BusinessError carrying the raw reason codes; an
// unrecognizable wrapper becomes a NormalizationError.
func decodeEnvelope(op, tenantID string, body []byte) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, len(body), "response is not a JSON object")
	}

	if _, ok := probe["ret"]; ok {
		var env wmEnvelope
		if err := json.Unmarshal(body, &env); err != nil || env.Ret == nil {
			return nil, apperrors.NewNormalizationError(op, tenantID, len(body), "malformed ret envelope")
		}
		if *env.Ret != 0 || env.Sub != 0 {
			return nil, apperrors.NewBusinessError(
				strconv.Itoa(*env.Ret), strconv.Itoa(env.Sub), env.Msg)
		}
		return env.Data, nil
	}

	if _, ok := probe["resultCode"]; ok {
		var env hyEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, apperrors.NewNormalizationError(op, tenantID, len(body), "malformed resultCode envelope")
		}
		if env.ResultCode != "0" {
			return nil, apperrors.NewBusinessError(env.ResultCode, "", env.ResultDesc)
		}
		return env.ResultData, nil
	}

	// Bare {"data": [...]} without a status marker is treated as success.
	if data, ok := probe["data"]; ok {
		return data, nil
	}

	return nil, apperrors.NewNormalizationError(op, tenantID, len(body), "no known envelope marker")
}

// decodeList extracts a flat record list from a payload that may be a bare
// array, a {"hot": [], "normal": []} bucket pair, or an object holding the
// list under one of the given keys. Bucket entries are concatenated hot-first
// and de-duplicated later by identity field.
func decodeList(op, tenantID string, payload json.RawMessage, keys ...string) ([]record, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var asList []record
	if err := json.Unmarshal(payload, &asList); err == nil {
		return asList, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(payload, &asObject); err != nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "payload is neither list nor object")
	}

	if hot, ok := asObject["hot"]; ok {
		var out []record
		var hotList, normalList []record
		if err := json.Unmarshal(hot, &hotList); err != nil {
			return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "malformed hot bucket")
		}
		if normal, ok := asObject["normal"]; ok {
			if err := json.Unmarshal(normal, &normalList); err != nil {
				return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "malformed normal bucket")
			}
		}
		out = append(out, hotList...)
		out = append(out, normalList...)
		return out, nil
	}

	for _, key := range keys {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		var list []record
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "malformed list under "+key)
		}
		return list, nil
	}

	return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "no list found in payload")
}

// dedupBy removes records sharing the same identity value, keeping the first
// occurrence. Records with no identity value are dropped.
func dedupBy(records []record, aliases []string) []record {
	seen := make(map[string]struct{}, len(records))
	out := make([]record, 0, len(records))
	for _, rec := range records {
		id := rec.str(aliases...)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, rec)
	}
	return out
}
