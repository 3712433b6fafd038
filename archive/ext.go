package archive

import (
	"bytes"

	"github.com/tesshu/arhfs/internal/arhx"
)

type extSection = arhx.Section

func decodeExtendedFrom(b []byte) (*extSection, error) {
	return arhx.Decode(bytes.NewReader(b))
}

func encodeExtended(s *extSection) ([]byte, error) {
	var buf bytes.Buffer
	if err := arhx.Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
