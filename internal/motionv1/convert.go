package motionv1

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// SampleToStruct encodes a sample as {"x","y","z"}.
func SampleToStruct(s model.MotionSample) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"x": structpb.NewNumberValue(s.X),
		"y": structpb.NewNumberValue(s.Y),
		"z": structpb.NewNumberValue(s.Z),
	}}
}

// AccelerationFromStruct decodes {"x","y","z"}. Missing or non-numeric
// components are left nil so validation can name them.
func AccelerationFromStruct(s *structpb.Struct) *model.Acceleration {
	if s == nil {
		return nil
	}
	return &model.Acceleration{
		X: numberField(s, "x"),
		Y: numberField(s, "y"),
		Z: numberField(s, "z"),
	}
}

// ReadingToStruct encodes a stored reading. Timestamps are RFC 3339 strings.
func ReadingToStruct(r *model.Reading) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"id":          structpb.NewStringValue(r.ID),
		"x":           structpb.NewNumberValue(r.X),
		"y":           structpb.NewNumberValue(r.Y),
		"z":           structpb.NewNumberValue(r.Z),
		"received_at": structpb.NewStringValue(r.ReceivedAt.UTC().Format(time.RFC3339Nano)),
	}
	if r.Source != "" {
		fields["source"] = structpb.NewStringValue(r.Source)
	}
	if r.UserAgent != "" {
		fields["user_agent"] = structpb.NewStringValue(r.UserAgent)
	}
	return &structpb.Struct{Fields: fields}
}

// ReadingFromStruct decodes a reading produced by ReadingToStruct.
func ReadingFromStruct(s *structpb.Struct) (*model.Reading, error) {
	if s == nil {
		return nil, fmt.Errorf("empty reading message")
	}
	acc := AccelerationFromStruct(s)
	sample, err := acc.Sample()
	if err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}
	r := &model.Reading{
		ID:        s.GetFields()["id"].GetStringValue(),
		X:         sample.X,
		Y:         sample.Y,
		Z:         sample.Z,
		Source:    s.GetFields()["source"].GetStringValue(),
		UserAgent: s.GetFields()["user_agent"].GetStringValue(),
	}
	if ts := s.GetFields()["received_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("decode received_at: %w", err)
		}
		r.ReceivedAt = t
	}
	return r, nil
}

func numberField(s *structpb.Struct, name string) *float64 {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}
	f := n.NumberValue
	return &f
}
