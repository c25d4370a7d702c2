package content

// FieldType distinguishes single strings from string lists.
type FieldType int

const (
	TextField FieldType = iota
	ListField
)

// SecondarySuffix is appended to a field name for its English mirror on the wire.
const SecondarySuffix = "En"

// FieldSpec declares one content field.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Localized  bool
	Required   bool
	Searchable bool
}

// WireSecondary is the request/response key of the secondary value.
func (f FieldSpec) WireSecondary() string { return f.Name + SecondarySuffix }

// Rule enforces a cross-field invariant after the generic merge.
type Rule func(r *Resource)

// Descriptor parameterizes the lifecycle manager for one resource type.
type Descriptor struct {
	Kind       Kind
	Collection string
	Fields     []FieldSpec
	MaxImages  int
	// Ordered resources expose a manual sort position.
	Ordered bool
	Rules   []Rule
}

// Field returns the spec for name.
func (d *Descriptor) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// SearchFields lists the text fields covered by free-text search.
func (d *Descriptor) SearchFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range d.Fields {
		if f.Searchable {
			out = append(out, f)
		}
	}
	return out
}

// Apply runs every rule against r.
func (d *Descriptor) Apply(r *Resource) {
	for _, rule := range d.Rules {
		rule(r)
	}
}

// InactiveNotFeatured forbids a hidden record from being featured.
func InactiveNotFeatured(r *Resource) {
	if !r.IsActive {
		r.IsFeatured = false
	}
}

const defaultMaxImages = 3

var (
	Blog = &Descriptor{
		Kind:       KindBlog,
		Collection: "blogs",
		MaxImages:  defaultMaxImages,
		Fields: []FieldSpec{
			{Name: "title", Localized: true, Required: true, Searchable: true},
			{Name: "excerpt", Localized: true, Searchable: true},
			{Name: "content", Localized: true, Required: true, Searchable: true},
			{Name: "category", Localized: true, Required: true},
			{Name: "author"},
			{Name: "tags", Type: ListField, Localized: true},
		},
		Rules: []Rule{InactiveNotFeatured},
	}

	Announcement = &Descriptor{
		Kind:       KindAnnouncement,
		Collection: "announcements",
		MaxImages:  defaultMaxImages,
		Fields: []FieldSpec{
			{Name: "title", Localized: true, Required: true, Searchable: true},
			{Name: "description", Localized: true, Required: true, Searchable: true},
			{Name: "content", Localized: true, Searchable: true},
			{Name: "category", Localized: true},
			{Name: "tags", Type: ListField, Localized: true},
		},
		Rules: []Rule{InactiveNotFeatured},
	}

	Service = &Descriptor{
		Kind:       KindService,
		Collection: "services",
		MaxImages:  defaultMaxImages,
		Ordered:    true,
		Fields: []FieldSpec{
			{Name: "title", Localized: true, Required: true, Searchable: true},
			{Name: "shortDescription", Localized: true, Required: true, Searchable: true},
			{Name: "description", Localized: true, Required: true, Searchable: true},
			{Name: "category", Localized: true},
			{Name: "icon"},
			{Name: "features", Type: ListField, Localized: true},
			{Name: "processSteps", Type: ListField, Localized: true},
			{Name: "tags", Type: ListField, Localized: true},
		},
		Rules: []Rule{InactiveNotFeatured},
	}
)

var registry = map[Kind]*Descriptor{
	KindBlog:         Blog,
	KindAnnouncement: Announcement,
	KindService:      Service,
}

// Lookup returns the descriptor registered for k.
func Lookup(k Kind) (*Descriptor, bool) {
	d, ok := registry[k]
	return d, ok
}

// All returns the built-in descriptors in route order.
func All() []*Descriptor {
	return []*Descriptor{Blog, Announcement, Service}
}
