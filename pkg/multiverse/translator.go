package multiverse

// SchemaSource resolves the universal schema registered for a record type.
// Implemented by Multiverse.
type SchemaSource interface {
	Schema(name string) (*UniversalSchema, bool)
}

// Translator converts concrete records between a universe's local shape and
// the universal shape, applying derived field maps and per-field transforms.
// Input records are never mutated; every write goes to a freshly allocated
// output record.
type Translator struct {
	source SchemaSource
	mapper *Mapper
}

// NewTranslator creates a translator resolving universal schemas through the
// given source.
func NewTranslator(source SchemaSource) *Translator {
	return &Translator{source: source, mapper: NewMapper()}
}

// ToUniversal translates a local record into the universal shape of its
// record type. Composite fields are flattened into their universal leaves;
// export transforms apply to direct entries only.
func (t *Translator) ToUniversal(rec Record, local *LocalSchema, universe string) (Record, error) {
	universal, ok := t.source.Schema(local.Name)
	if !ok {
		return nil, &SchemaNotFoundError{Name: local.Name}
	}
	fm, err := t.mapper.Derive(local, universal, universe)
	if err != nil {
		return nil, err
	}

	out := Record{}
	for _, path := range fm.ExportPaths() {
		target := fm.Export[path]
		root, nested := pathRoot(path)
		def, _ := local.Field(root)

		value, found := GetPath(rec, path)
		if !nested && def.Export != nil {
			value = def.Export(TransformArgs{
				Current:      out,
				Input:        rec,
				CurrentValue: out[target],
				NewValue:     value,
				Field:        def,
			})
			found = true
		}
		if !found && def.Default != nil {
			value = def.Default
			found = true
		}
		if found {
			out[target] = cloneValue(value)
		}
	}

	for target, value := range fm.Defaults {
		if _, present := out[target]; !present {
			out[target] = cloneValue(value)
		}
	}

	if local.ExportRecord != nil {
		out = local.ExportRecord(out)
	}
	return out, nil
}

// ToLocal translates a universal record into a universe's local shape.
// Composite fields are initialized before leaves are written; ExportOnly
// fields never receive values; validation runs on the finished record.
func (t *Translator) ToLocal(univ Record, local *LocalSchema, universe string) (Record, error) {
	universalSchema, ok := t.source.Schema(local.Name)
	if !ok {
		return nil, &SchemaNotFoundError{Name: local.Name}
	}
	fm, err := t.mapper.Derive(local, universalSchema, universe)
	if err != nil {
		return nil, err
	}

	out := Record{}
	for _, name := range local.Names() {
		def, _ := local.Field(name)
		if !def.Composite || def.ExportOnly {
			continue
		}
		if def.Import != nil {
			out[name] = def.Import(TransformArgs{
				Current: out,
				Input:   univ,
				Field:   def,
			})
			continue
		}
		if def.Type == FieldArray {
			out[name] = []interface{}{}
		} else {
			out[name] = Record{}
		}
	}

	for _, universalName := range fm.ImportFields() {
		path := fm.Import[universalName]
		root, nested := pathRoot(path)
		def, _ := local.Field(root)
		if def.ExportOnly {
			continue
		}

		value, found := GetPath(univ, universalName)
		if !nested && def.Import != nil && !def.Composite {
			value = def.Import(TransformArgs{
				Current:      out,
				Input:        univ,
				CurrentValue: out[path],
				NewValue:     value,
				Field:        def,
			})
			found = true
		}
		if !found && def.Default != nil {
			value = def.Default
			found = true
		}
		if found {
			SetPath(out, path, cloneValue(value))
		}
	}

	if local.ImportRecord != nil {
		out = local.ImportRecord(out)
	}

	if err := NewValidator(local).ValidateRecord(out); err != nil {
		return nil, &ValidationError{Schema: local.Name, Universe: universe, Err: err}
	}
	return out, nil
}
