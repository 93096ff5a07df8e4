package model

import "encoding/json"

// Payloads travel to the storage backends as flat maps: the reserved
// keys plus the metadata keys at top level, so equality filters apply
// uniformly to both.
const (
	PayloadKeyDocID      = "doc_id"
	PayloadKeyChunkIndex = "chunk_index"
	PayloadKeyText       = "text"
)

func (p Payload) Flatten() map[string]interface{} {
	flat := make(map[string]interface{}, len(p.Metadata)+3)
	for k, v := range p.Metadata {
		flat[k] = v
	}
	flat[PayloadKeyDocID] = p.DocID
	flat[PayloadKeyChunkIndex] = p.ChunkIndex
	flat[PayloadKeyText] = p.Text
	return flat
}

func PayloadFromMap(flat map[string]interface{}) Payload {
	var p Payload
	if v, ok := flat[PayloadKeyDocID].(string); ok {
		p.DocID = v
	}
	switch v := flat[PayloadKeyChunkIndex].(type) {
	case float64:
		p.ChunkIndex = int(v)
	case int:
		p.ChunkIndex = v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			p.ChunkIndex = int(n)
		}
	}
	if v, ok := flat[PayloadKeyText].(string); ok {
		p.Text = v
	}
	for k, v := range flat {
		switch k {
		case PayloadKeyDocID, PayloadKeyChunkIndex, PayloadKeyText:
			continue
		}
		if p.Metadata == nil {
			p.Metadata = make(map[string]interface{})
		}
		p.Metadata[k] = v
	}
	return p
}
