package scheduler

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-scheduler/internal/domain/alarm"
)

// Payload field names.
const (
	fieldID      = "notificationId"
	fieldTitle   = "title"
	fieldBody    = "body"
	fieldIsDaily = "isDaily"
	fieldDelay   = "delaySeconds"
	fieldHour    = "hour"
	fieldMinute  = "minute"
)

var errMalformedPayload = errors.New("malformed alarm payload")

// EncodePayload serialises the request as protojson of a google.protobuf.Struct.
func EncodePayload(req *alarm.Request) ([]byte, error) {
	fields := map[string]*structpb.Value{
		fieldID:      structpb.NewNumberValue(float64(req.Identifier)),
		fieldTitle:   structpb.NewStringValue(req.Title),
		fieldBody:    structpb.NewStringValue(req.Body),
		fieldIsDaily: structpb.NewBoolValue(req.Mode.IsDaily()),
	}

	if req.Mode.IsDaily() {
		fields[fieldHour] = structpb.NewNumberValue(float64(req.Mode.Hour))
		fields[fieldMinute] = structpb.NewNumberValue(float64(req.Mode.Minute))
	} else {
		fields[fieldDelay] = structpb.NewNumberValue(float64(req.Mode.DelaySeconds))
	}

	data, err := protojson.Marshal(&structpb.Struct{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return data, nil
}

// DecodePayload restores a request encoded by EncodePayload.
func DecodePayload(data []byte) (*alarm.Request, error) {
	var object structpb.Struct
	if err := protojson.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedPayload, err)
	}

	fields := object.GetFields()

	id, ok := fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", errMalformedPayload, fieldID)
	}

	req := &alarm.Request{
		Identifier: int(id.GetNumberValue()),
		Title:      fields[fieldTitle].GetStringValue(),
		Body:       fields[fieldBody].GetStringValue(),
	}

	if fields[fieldIsDaily].GetBoolValue() {
		req.Mode = alarm.Daily(int(fields[fieldHour].GetNumberValue()), int(fields[fieldMinute].GetNumberValue()))
	} else {
		req.Mode = alarm.OneShot(int(fields[fieldDelay].GetNumberValue()))
	}

	return req, nil
}
