package header

import "fmt"

// EntryType is the on-disk type id of an index entry.
type EntryType uint32

const (
	TypeNull        EntryType = 0
	TypeChar        EntryType = 1
	TypeInt8        EntryType = 2
	TypeInt16       EntryType = 3
	TypeInt32       EntryType = 4
	TypeInt64       EntryType = 5
	TypeString      EntryType = 6
	TypeBin         EntryType = 7
	TypeStringArray EntryType = 8
	TypeI18NString  EntryType = 9
)

var typeNames = map[EntryType]string{
	TypeNull:        "NULL",
	TypeChar:        "CHAR",
	TypeInt8:        "INT8",
	TypeInt16:       "INT16",
	TypeInt32:       "INT32",
	TypeInt64:       "INT64",
	TypeString:      "STRING",
	TypeBin:         "BIN",
	TypeStringArray: "STRING_ARRAY",
	TypeI18NString:  "I18NSTRING",
}

func (t EntryType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", uint32(t))
}

// Valid reports whether t is one of the ten defined types.
func (t EntryType) Valid() bool {
	return t <= TypeI18NString
}

// Alignment is the store alignment required for values of type t.
func (t EntryType) Alignment() int {
	switch t {
	case TypeInt16:
		return 2
	case TypeInt32:
		return 4
	case TypeInt64:
		return 8
	default:
		return 1
	}
}

// width is the fixed element size, or 0 for the NUL-terminated string types.
func (t EntryType) width() int {
	switch t {
	case TypeNull:
		return 0
	case TypeChar, TypeInt8, TypeBin:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32:
		return 4
	case TypeInt64:
		return 8
	default:
		return 0
	}
}

func (t EntryType) isString() bool {
	return t == TypeString || t == TypeStringArray || t == TypeI18NString
}

// compatible reports whether an entry stored as got satisfies a tag whose
// canonical type is want. The string family is interchangeable because
// different rpm versions store the same tag as STRING, STRING_ARRAY or
// I18NSTRING; numeric and binary types must match exactly.
func compatible(want, got EntryType) bool {
	if want == got {
		return true
	}
	return want.isString() && got.isString()
}
