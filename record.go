package rowstore

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// TimestampLayout is the layout written for DateFormatDatetime.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the layout written for DateFormatDate.
const DateLayout = "2006-01-02"

func newRecordDecoder(out any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(TimestampLayout),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
}

// DecodeRecord copies row onto out, a pointer to a struct with db tags.
func DecodeRecord(row Record, out any) error {
	dec, err := newRecordDecoder(out)
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(row)); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// Decode copies the result rows onto out, a pointer to a slice of structs.
func (r *Result) Decode(out any) error {
	rows := make([]map[string]any, 0)
	if r != nil {
		for _, row := range r.Rows {
			rows = append(rows, row)
		}
	}
	dec, err := newRecordDecoder(out)
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(rows); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
