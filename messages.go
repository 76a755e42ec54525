package rowstore

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys understood by FormatMessage.
const (
	MsgNotUniqueKey        = "notUniqueKey"
	MsgDeleteAllNotAllowed = "deleteAllNotAllowed"
	MsgInvalidCompositeID  = "invalidCompositeId"
	MsgEmptyDataset        = "emptyDataset"
	MsgEmptyPrimaryKey     = "emptyPrimaryKey"
	MsgInvalidRecord       = "invalidRecord"
)

// DefaultLanguage is used when building error messages.
var DefaultLanguage = language.English

// MessagePrinter renders catalog entries. *message.Printer satisfies it.
type MessagePrinter interface {
	Sprintf(key message.Reference, a ...any) string
}

var messages = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	en := map[string]string{
		MsgNotUniqueKey:        "`%[1]s` is not a Unique Key of `%[2]s` model class.",
		MsgDeleteAllNotAllowed: "Deletes are not allowed unless they contain a \"where\" or \"like\" clause.",
		MsgInvalidCompositeID:  "The composite ID of %[2]s should be an associative array with the following keys: %[1]s.",
		MsgEmptyDataset:        "There is no data to %[1]s.",
		MsgEmptyPrimaryKey:     "There is no primary key defined when trying to %[1]s.",
		MsgInvalidRecord:       "The record cannot be converted to a flat row: %[1]s.",
	}
	for key, tmpl := range en {
		// keys and templates are constants; SetString only fails on a bad tag
		_ = b.SetString(language.English, key, tmpl)
	}
	return b
}

// RegisterMessage adds or replaces a translation.
func RegisterMessage(tag language.Tag, key, template string) error {
	return messages.SetString(tag, key, template)
}

// NewPrinter returns a printer over the rowstore catalog.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// FormatMessage renders the message registered under key for tag.
func FormatMessage(tag language.Tag, key string, params ...any) string {
	return NewPrinter(tag).Sprintf(key, params...)
}
