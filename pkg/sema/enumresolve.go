package sema

// variantResolutionKind distinguishes the three outcomes of resolving an
// unqualified enum variant name against every declared enum.
type variantResolutionKind int

const (
	variantMissing variantResolutionKind = iota
	variantUnique
	variantAmbiguous
)

// variantResolution is the result of resolveVariantUnqualified.
type variantResolution struct {
	Kind      variantResolutionKind
	EnumName  string
	Schema    *EnumSchema
	HasPayload bool
	Candidates []string // enum names, only set when Kind == variantAmbiguous
}

// resolveVariantUnqualified finds every enum declaring a variant named name
// and reports Missing (no enum declares it), Unique (exactly one does), or
// Ambiguous (more than one does, forcing the caller to qualify as
// Enum.Variant).
func resolveVariantUnqualified(name string, enums map[string]*EnumSchema) variantResolution {
	var matches []string
	for enumName, schema := range enums {
		if _, ok := schema.Variants[name]; ok {
			matches = append(matches, enumName)
		}
	}

	switch len(matches) {
	case 0:
		return variantResolution{Kind: variantMissing}
	case 1:
		schema := enums[matches[0]]
		return variantResolution{
			Kind: variantUnique, EnumName: matches[0], Schema: schema,
			HasPayload: schema.Variants[name] != nil,
		}
	default:
		return variantResolution{Kind: variantAmbiguous, Candidates: matches}
	}
}

// resolveVariantQualified looks up variant on the named enum directly.
func resolveVariantQualified(enumName, variant string, enums map[string]*EnumSchema) (*EnumSchema, bool, bool) {
	schema, ok := enums[enumName]
	if !ok {
		return nil, false, false
	}
	payload, ok := schema.Variants[variant]
	if !ok {
		return nil, false, false
	}
	return schema, payload != nil, true
}
