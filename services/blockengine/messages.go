package blockengine

import (
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Full gRPC method names of the block engine services.
const (
	methodGenerateAuthChallenge = "/auth.AuthService/GenerateAuthChallenge"
	methodGenerateAuthTokens    = "/auth.AuthService/GenerateAuthTokens"
	methodRefreshAccessToken    = "/auth.AuthService/RefreshAccessToken"
	methodSendBundle            = "/searcher.SearcherService/SendBundle"
)

// RoleSearcher is the auth role of a client that submits bundles.
const RoleSearcher int32 = 1

// protoMessage is implemented by every message carried by the codec.
type protoMessage interface {
	MarshalProto() ([]byte, error)
	UnmarshalProto(b []byte) error
}

// codec carries hand-encoded protobuf messages over gRPC. Its name keeps the standard
// application/grpc+proto content type.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(protoMessage)
	if !ok {
		return nil, errors.NewProcessingError("codec cannot marshal %T", v)
	}

	return m.MarshalProto()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(protoMessage)
	if !ok {
		return errors.NewProcessingError("codec cannot unmarshal into %T", v)
	}

	return m.UnmarshalProto(data)
}

func (codec) Name() string {
	return "proto"
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// consumeFields walks the top-level fields of a message. fn returns how many bytes of the value
// it consumed, or -1 to skip the field.
func consumeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.NewInvalidResponseError("malformed protobuf tag", protowire.ParseError(n))
		}

		b = b[n:]

		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}

		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return errors.NewInvalidResponseError("malformed protobuf field %d", num, protowire.ParseError(used))
			}
		}

		b = b[used:]
	}

	return nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}

	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, errors.NewInvalidResponseError("malformed protobuf bytes", protowire.ParseError(n))
	}

	*dst = append([]byte(nil), v...)

	return n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	var v []byte

	n, err := consumeBytes(typ, b, &v)
	if n > 0 {
		*dst = string(v)
	}

	return n, err
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return -1, nil
	}

	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, errors.NewInvalidResponseError("malformed protobuf varint", protowire.ParseError(n))
	}

	*dst = v

	return n, nil
}

func consumeMessage(typ protowire.Type, b []byte, m protoMessage) (int, error) {
	var v []byte

	n, err := consumeBytes(typ, b, &v)
	if err != nil || n < 0 {
		return n, err
	}

	return n, m.UnmarshalProto(v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

func appendMessageField(b []byte, num protowire.Number, m protoMessage) ([]byte, error) {
	v, err := m.MarshalProto()
	if err != nil {
		return nil, err
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v), nil
}

type generateAuthChallengeRequest struct {
	Role   int32
	Pubkey []byte
}

func (m *generateAuthChallengeRequest) MarshalProto() ([]byte, error) {
	b := appendVarintField(nil, 1, uint64(m.Role)) //nolint:gosec // enum values are small and positive
	return appendBytesField(b, 2, m.Pubkey), nil
}

func (m *generateAuthChallengeRequest) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			var role uint64

			n, err := consumeVarint(typ, v, &role)
			m.Role = int32(role) //nolint:gosec // enum values are small and positive

			return n, err
		case 2:
			return consumeBytes(typ, v, &m.Pubkey)
		}

		return -1, nil
	})
}

type generateAuthChallengeResponse struct {
	Challenge string
}

func (m *generateAuthChallengeResponse) MarshalProto() ([]byte, error) {
	return appendBytesField(nil, 1, []byte(m.Challenge)), nil
}

func (m *generateAuthChallengeResponse) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, v, &m.Challenge)
		}

		return -1, nil
	})
}

type generateAuthTokensRequest struct {
	Challenge       string
	ClientPubkey    []byte
	SignedChallenge []byte
}

func (m *generateAuthTokensRequest) MarshalProto() ([]byte, error) {
	b := appendBytesField(nil, 1, []byte(m.Challenge))
	b = appendBytesField(b, 2, m.ClientPubkey)

	return appendBytesField(b, 3, m.SignedChallenge), nil
}

func (m *generateAuthTokensRequest) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &m.Challenge)
		case 2:
			return consumeBytes(typ, v, &m.ClientPubkey)
		case 3:
			return consumeBytes(typ, v, &m.SignedChallenge)
		}

		return -1, nil
	})
}

// timestamp is google.protobuf.Timestamp.
type timestamp struct {
	Seconds int64
	Nanos   int32
}

func newTimestamp(t time.Time) *timestamp {
	return &timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())} //nolint:gosec // always < 1e9
}

func (m *timestamp) Time() time.Time {
	return time.Unix(m.Seconds, int64(m.Nanos))
}

func (m *timestamp) MarshalProto() ([]byte, error) {
	b := appendVarintField(nil, 1, uint64(m.Seconds))    //nolint:gosec // two's complement on the wire
	return appendVarintField(b, 2, uint64(m.Nanos)), nil //nolint:gosec // two's complement on the wire
}

func (m *timestamp) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var x uint64

		switch num {
		case 1:
			n, err := consumeVarint(typ, v, &x)
			m.Seconds = int64(x) //nolint:gosec // two's complement on the wire

			return n, err
		case 2:
			n, err := consumeVarint(typ, v, &x)
			m.Nanos = int32(x) //nolint:gosec // two's complement on the wire

			return n, err
		}

		return -1, nil
	})
}

type token struct {
	Value        string
	ExpiresAtUTC *timestamp
}

func (m *token) MarshalProto() ([]byte, error) {
	b := appendBytesField(nil, 1, []byte(m.Value))

	if m.ExpiresAtUTC != nil {
		return appendMessageField(b, 2, m.ExpiresAtUTC)
	}

	return b, nil
}

func (m *token) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &m.Value)
		case 2:
			m.ExpiresAtUTC = &timestamp{}
			return consumeMessage(typ, v, m.ExpiresAtUTC)
		}

		return -1, nil
	})
}

type generateAuthTokensResponse struct {
	AccessToken  *token
	RefreshToken *token
}

func (m *generateAuthTokensResponse) MarshalProto() ([]byte, error) {
	var (
		b   []byte
		err error
	)

	if m.AccessToken != nil {
		if b, err = appendMessageField(b, 1, m.AccessToken); err != nil {
			return nil, err
		}
	}

	if m.RefreshToken != nil {
		if b, err = appendMessageField(b, 2, m.RefreshToken); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (m *generateAuthTokensResponse) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			m.AccessToken = &token{}
			return consumeMessage(typ, v, m.AccessToken)
		case 2:
			m.RefreshToken = &token{}
			return consumeMessage(typ, v, m.RefreshToken)
		}

		return -1, nil
	})
}

type refreshAccessTokenRequest struct {
	RefreshToken string
}

func (m *refreshAccessTokenRequest) MarshalProto() ([]byte, error) {
	return appendBytesField(nil, 1, []byte(m.RefreshToken)), nil
}

func (m *refreshAccessTokenRequest) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, v, &m.RefreshToken)
		}

		return -1, nil
	})
}

type refreshAccessTokenResponse struct {
	AccessToken *token
}

func (m *refreshAccessTokenResponse) MarshalProto() ([]byte, error) {
	if m.AccessToken == nil {
		return nil, nil
	}

	return appendMessageField(nil, 1, m.AccessToken)
}

func (m *refreshAccessTokenResponse) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			m.AccessToken = &token{}
			return consumeMessage(typ, v, m.AccessToken)
		}

		return -1, nil
	})
}

// packetMeta carries only the size; the remaining meta fields are server side.
type packetMeta struct {
	Size uint64
}

func (m *packetMeta) MarshalProto() ([]byte, error) {
	return appendVarintField(nil, 1, m.Size), nil
}

func (m *packetMeta) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return consumeVarint(typ, v, &m.Size)
		}

		return -1, nil
	})
}

type packet struct {
	Data []byte
	Meta *packetMeta
}

func (m *packet) MarshalProto() ([]byte, error) {
	b := appendBytesField(nil, 1, m.Data)

	if m.Meta != nil {
		return appendMessageField(b, 2, m.Meta)
	}

	return b, nil
}

func (m *packet) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, v, &m.Data)
		case 2:
			m.Meta = &packetMeta{}
			return consumeMessage(typ, v, m.Meta)
		}

		return -1, nil
	})
}

// bundle leaves the header unset, the block engine fills it in.
type bundle struct {
	Packets []*packet
}

func (m *bundle) MarshalProto() ([]byte, error) {
	var (
		b   []byte
		err error
	)

	for _, p := range m.Packets {
		if b, err = appendMessageField(b, 3, p); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (m *bundle) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 3 {
			p := &packet{}

			n, err := consumeMessage(typ, v, p)
			if n > 0 && err == nil {
				m.Packets = append(m.Packets, p)
			}

			return n, err
		}

		return -1, nil
	})
}

type sendBundleRequest struct {
	Bundle *bundle
}

func (m *sendBundleRequest) MarshalProto() ([]byte, error) {
	if m.Bundle == nil {
		return nil, nil
	}

	return appendMessageField(nil, 1, m.Bundle)
}

func (m *sendBundleRequest) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			m.Bundle = &bundle{}
			return consumeMessage(typ, v, m.Bundle)
		}

		return -1, nil
	})
}

type sendBundleResponse struct {
	UUID string
}

func (m *sendBundleResponse) MarshalProto() ([]byte, error) {
	return appendBytesField(nil, 1, []byte(m.UUID)), nil
}

func (m *sendBundleResponse) UnmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, v, &m.UUID)
		}

		return -1, nil
	})
}
