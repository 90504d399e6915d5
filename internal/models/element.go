package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// ElementType discriminates the variants of an ERD element.
type ElementType string

const (
	ElementTypeEntity       ElementType = "entity"
	ElementTypeRelationship ElementType = "relationship"
	ElementTypeAttribute    ElementType = "attribute"
)

// Entity sub types.
const (
	EntityStrong = "strong"
	EntityWeak   = "weak"
)

// Relationship cardinalities.
const (
	RelationshipOneToOne   = "one-to-one"
	RelationshipOneToMany  = "one-to-many"
	RelationshipManyToMany = "many-to-many"
)

// Attribute sub types.
const (
	AttributePrimaryKey  = "primary_key"
	AttributeForeignKey  = "foreign_key"
	AttributeRegular     = "regular"
	AttributeDerived     = "derived"
	AttributeMultivalued = "multivalued"
	AttributeComposite   = "composite"
)

const (
	// ReviewConfidenceThreshold splits detected elements into auto-accepted and needs-review.
	ReviewConfidenceThreshold = 95
	// ManualConfidence is assigned to elements a lecturer adds by hand.
	ManualConfidence = 100
)

var subTypesByElementType = map[ElementType][]string{
	ElementTypeEntity:       {EntityStrong, EntityWeak},
	ElementTypeRelationship: {RelationshipOneToOne, RelationshipOneToMany, RelationshipManyToMany},
	ElementTypeAttribute: {
		AttributePrimaryKey, AttributeForeignKey, AttributeRegular,
		AttributeDerived, AttributeMultivalued, AttributeComposite,
	},
}

// ErrUnknownElementType is returned when decoding an element with an unsupported discriminator.
var ErrUnknownElementType = errors.New("unknown element type")

// ValidElementType reports whether t names one of the three element variants.
func ValidElementType(t ElementType) bool {
	_, ok := subTypesByElementType[t]
	return ok
}

// SubTypesFor lists the sub types accepted for an element type.
func SubTypesFor(t ElementType) []string {
	return append([]string(nil), subTypesByElementType[t]...)
}

// ValidSubType reports whether subType is allowed for the element type.
func ValidSubType(t ElementType, subType string) bool {
	for _, candidate := range subTypesByElementType[t] {
		if candidate == subType {
			return true
		}
	}
	return false
}

// Element is one component of an ERD. It is implemented by Entity,
// Relationship and Attribute only.
type Element interface {
	ElementID() string
	ElementName() string
	ElementType() ElementType
	ElementSubType() string
	ElementConfidence() int
	isElement()
}

// ElementBase carries the fields shared by every element variant.
type ElementBase struct {
	ID         string
	Name       string
	SubType    string
	Confidence int
}

func (b ElementBase) ElementID() string { return b.ID }
func (b ElementBase) ElementName() string { return b.Name }
func (b ElementBase) ElementSubType() string { return b.SubType }
func (b ElementBase) ElementConfidence() int { return b.Confidence }
func (ElementBase) isElement() {}

// Entity is a strong or weak entity set.
type Entity struct {
	ElementBase
}

// ElementType implements Element.
func (Entity) ElementType() ElementType { return ElementTypeEntity }

// Relationship connects two entities by name.
type Relationship struct {
	ElementBase
	From string
	To   string
}

// ElementType implements Element.
func (Relationship) ElementType() ElementType { return ElementTypeRelationship }

// Attribute belongs to an entity, a relationship or a composite attribute.
type Attribute struct {
	ElementBase
	BelongsTo     string
	BelongsToType ElementType
}

// ElementType implements Element.
func (Attribute) ElementType() ElementType { return ElementTypeAttribute }

// NeedsReview reports whether the element falls below the auto-accept threshold.
func NeedsReview(e Element) bool {
	return e.ElementConfidence() < ReviewConfidenceThreshold
}

// ElementPayload is the flat wire representation of an element.
type ElementPayload struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	SubType       string   `json:"subType"`
	Confidence    *float64 `json:"confidence,omitempty"`
	From          string   `json:"from,omitempty"`
	To            string   `json:"to,omitempty"`
	BelongsTo     string   `json:"belongsTo,omitempty"`
	BelongsToType string   `json:"belongsToType,omitempty"`
}

// ToElement converts the payload into its typed variant. Missing ids are
// generated and a missing confidence means the element was added by hand.
func (p ElementPayload) ToElement() (Element, error) {
	base := ElementBase{
		ID:         strings.TrimSpace(p.ID),
		Name:       strings.TrimSpace(p.Name),
		SubType:    strings.TrimSpace(p.SubType),
		Confidence: ManualConfidence,
	}
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if p.Confidence != nil {
		base.Confidence = int(math.Round(*p.Confidence))
	}

	switch ElementType(strings.ToLower(strings.TrimSpace(p.Type))) {
	case ElementTypeEntity:
		return Entity{ElementBase: base}, nil
	case ElementTypeRelationship:
		return Relationship{
			ElementBase: base,
			From:        strings.TrimSpace(p.From),
			To:          strings.TrimSpace(p.To),
		}, nil
	case ElementTypeAttribute:
		return Attribute{
			ElementBase:   base,
			BelongsTo:     strings.TrimSpace(p.BelongsTo),
			BelongsToType: ElementType(strings.ToLower(strings.TrimSpace(p.BelongsToType))),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownElementType, p.Type)
	}
}

// PayloadFor flattens a typed element for the wire.
func PayloadFor(e Element) ElementPayload {
	confidence := float64(e.ElementConfidence())
	payload := ElementPayload{
		ID:         e.ElementID(),
		Name:       e.ElementName(),
		Type:       string(e.ElementType()),
		SubType:    e.ElementSubType(),
		Confidence: &confidence,
	}

	switch v := e.(type) {
	case Relationship:
		payload.From = v.From
		payload.To = v.To
	case Attribute:
		payload.BelongsTo = v.BelongsTo
		payload.BelongsToType = string(v.BelongsToType)
	}

	return payload
}

// ElementSet is an ordered list of elements persisted as a JSON array.
type ElementSet []Element

// MarshalJSON encodes the set using the flat payload shape.
func (s ElementSet) MarshalJSON() ([]byte, error) {
	payloads := make([]ElementPayload, 0, len(s))
	for _, element := range s {
		payloads = append(payloads, PayloadFor(element))
	}
	return json.Marshal(payloads)
}

// UnmarshalJSON decodes a flat payload array into typed elements.
func (s *ElementSet) UnmarshalJSON(data []byte) error {
	var payloads []ElementPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return err
	}

	set, err := NewElementSet(payloads)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// NewElementSet converts payloads into a typed set.
func NewElementSet(payloads []ElementPayload) (ElementSet, error) {
	set := make(ElementSet, 0, len(payloads))
	for idx, payload := range payloads {
		element, err := payload.ToElement()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", idx, err)
		}
		set = append(set, element)
	}
	return set, nil
}

// Value implements driver.Valuer.
func (s ElementSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *ElementSet) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported element set column type %T", value)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		*s = nil
		return nil
	}
	return s.UnmarshalJSON(data)
}

// Partition splits the set into auto-accepted and needs-review elements.
func (s ElementSet) Partition() (accepted, review ElementSet) {
	accepted = ElementSet{}
	review = ElementSet{}
	for _, element := range s {
		if NeedsReview(element) {
			review = append(review, element)
			continue
		}
		accepted = append(accepted, element)
	}
	return accepted, review
}

// Count returns how many elements of the given type are present.
func (s ElementSet) Count(t ElementType) int {
	total := 0
	for _, element := range s {
		if element.ElementType() == t {
			total++
		}
	}
	return total
}

// Validate checks every element and its references. The returned map is
// keyed by element position and field, e.g. "elements[2].from".
func (s ElementSet) Validate() map[string]string {
	fields := map[string]string{}
	names := map[ElementType]map[string]struct{}{
		ElementTypeEntity:       {},
		ElementTypeRelationship: {},
		ElementTypeAttribute:    {},
	}
	for _, element := range s {
		names[element.ElementType()][normalizeName(element.ElementName())] = struct{}{}
	}

	has := func(t ElementType, name string) bool {
		_, ok := names[t][normalizeName(name)]
		return ok
	}

	for idx, element := range s {
		key := fmt.Sprintf("elements[%d]", idx)

		if element.ElementName() == "" {
			fields[key+".name"] = "name is required"
		}
		if !ValidSubType(element.ElementType(), element.ElementSubType()) {
			fields[key+".subType"] = fmt.Sprintf("subType must be one of %s", strings.Join(SubTypesFor(element.ElementType()), ", "))
		}
		if c := element.ElementConfidence(); c < 0 || c > 100 {
			fields[key+".confidence"] = "confidence must be between 0 and 100"
		}

		switch v := element.(type) {
		case Relationship:
			if v.From == "" {
				fields[key+".from"] = "relationship must name its source entity"
			} else if !has(ElementTypeEntity, v.From) {
				fields[key+".from"] = fmt.Sprintf("entity %q does not exist", v.From)
			}
			if v.To == "" {
				fields[key+".to"] = "relationship must name its target entity"
			} else if !has(ElementTypeEntity, v.To) {
				fields[key+".to"] = fmt.Sprintf("entity %q does not exist", v.To)
			}
		case Attribute:
			switch {
			case v.BelongsTo == "":
				fields[key+".belongsTo"] = "attribute must name the element it belongs to"
			case !ValidElementType(v.BelongsToType):
				fields[key+".belongsToType"] = "belongsToType must be entity, relationship or attribute"
			case v.BelongsToType == ElementTypeAttribute && normalizeName(v.BelongsTo) == normalizeName(v.Name):
				fields[key+".belongsTo"] = "attribute cannot belong to itself"
			case !has(v.BelongsToType, v.BelongsTo):
				fields[key+".belongsTo"] = fmt.Sprintf("%s %q does not exist", v.BelongsToType, v.BelongsTo)
			}
		}
	}

	return fields
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
