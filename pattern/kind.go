package pattern

// Kind identifies a pattern variant.
type Kind int

const (
	KindNumber Kind = iota
	KindBoolean
	KindString
	KindEmptyString
	KindNull
	KindExact
	KindList
	KindObject
	KindAny
	KindDeferred
	KindXML
	KindLookupRow
	KindDateTime
	KindUUID
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindEmptyString:
		return "emptystring"
	case KindNull:
		return "null"
	case KindExact:
		return "exact"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindAny:
		return "any"
	case KindDeferred:
		return "deferred"
	case KindXML:
		return "xml"
	case KindLookupRow:
		return "lookuprow"
	case KindDateTime:
		return "datetime"
	case KindUUID:
		return "uuid"
	default:
		panic(k)
	}
}

// IsScalar reports whether patterns of this kind describe a single JSON scalar.
func (k Kind) IsScalar() bool {
	switch k {
	case KindNumber, KindBoolean, KindString, KindEmptyString, KindNull, KindDateTime, KindUUID:
		return true
	default:
		return false
	}
}
