package models

// Source tags identify which collaborator backed a bundle section. Every
// result the aggregator returns carries one for provenance.
const (
	SourceDocuments     = "documents"
	SourceKnowledge     = "knowledge"
	SourceOrganizations = "organizations"
	SourceDepartments   = "departments"
	SourceConstraints   = "constraints"
)

// Bundle is the merged, provenance-tagged result of aggregating all selected
// sources for one question. A failing source degrades the bundle (omitted from
// Sources, Partial set) rather than failing the call.
type Bundle struct {
	Documents        []Document       `json:"documents,omitempty"`
	KnowledgeEntries []KnowledgeEntry `json:"knowledge_entries,omitempty"`
	OrganizationInfo *Organization    `json:"organization_info,omitempty"`
	DepartmentInfo   *Department      `json:"department_info,omitempty"`
	// ConstraintAnswer, when set, wins outright and bypasses synthesis.
	ConstraintAnswer string `json:"constraint_answer,omitempty"`
	// Sources lists the source tags that contributed successfully.
	Sources []string `json:"sources"`
	// Partial is true when at least one selected source failed or timed out.
	Partial bool `json:"partial,omitempty"`
}

// IsEmpty reports whether no source contributed anything.
func (b *Bundle) IsEmpty() bool {
	return len(b.Documents) == 0 &&
		len(b.KnowledgeEntries) == 0 &&
		b.OrganizationInfo == nil &&
		b.DepartmentInfo == nil &&
		b.ConstraintAnswer == ""
}

// RelevantItems converts the bundle's contents into provenance tags for the
// transcript.
func (b *Bundle) RelevantItems() []RelevantItem {
	var items []RelevantItem
	for _, d := range b.Documents {
		items = append(items, RelevantItem{Type: "document", ID: d.ID, Title: d.Title, Source: SourceDocuments})
	}
	for _, k := range b.KnowledgeEntries {
		items = append(items, RelevantItem{Type: "knowledge", ID: k.ID, Title: k.Title, Source: SourceKnowledge})
	}
	if b.OrganizationInfo != nil {
		items = append(items, RelevantItem{Type: "organization", ID: b.OrganizationInfo.ID, Title: b.OrganizationInfo.Name, Source: SourceOrganizations})
	}
	if b.DepartmentInfo != nil {
		items = append(items, RelevantItem{Type: "department", ID: b.DepartmentInfo.ID, Title: b.DepartmentInfo.Name, Source: SourceDepartments})
	}
	return items
}
