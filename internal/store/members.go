package store

import "encoding/json"

// Member lists are stored as a JSON array in a single text column, so both
// SQL backends share the encoding.

func encodeMembers(members []uint64) (string, error) {
	if members == nil {
		members = []uint64{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMembers(raw string) ([]uint64, error) {
	if raw == "" {
		return []uint64{}, nil
	}
	var members []uint64
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func containsMember(members []uint64, id uint64) bool {
	for _, m := range members {
		if m == id {
			return true
		}
	}
	return false
}
