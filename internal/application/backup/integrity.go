package backup

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// reference is a foreign key from one collection's field to another collection
type reference struct {
	from   shared.Collection
	field  string
	to     shared.Collection
	isList bool
}

var references = []reference{
	{from: shared.CollectionInstallments, field: "service_id", to: shared.CollectionServices},
	{from: shared.CollectionServices, field: "installment_ids", to: shared.CollectionInstallments, isList: true},
	{from: shared.CollectionServices, field: "client_id", to: shared.CollectionClients},
	{from: shared.CollectionServiceMaterials, field: "service_id", to: shared.CollectionServices},
	{from: shared.CollectionServiceMaterials, field: "material_id", to: shared.CollectionMaterials},
	{from: shared.CollectionStockMovements, field: "material_id", to: shared.CollectionMaterials},
	{from: shared.CollectionServiceTechnicians, field: "service_id", to: shared.CollectionServices},
	{from: shared.CollectionServiceTechnicians, field: "technician_id", to: shared.CollectionTechnicians},
	{from: shared.CollectionOrderMaterials, field: "order_id", to: shared.CollectionOrders},
	{from: shared.CollectionOrderMaterials, field: "material_id", to: shared.CollectionMaterials},
	{from: shared.CollectionAppointments, field: "client_id", to: shared.CollectionClients},
	{from: shared.CollectionPayments, field: "service_id", to: shared.CollectionServices},
}

type record = map[string]any

// decodeCollections parses every collection of data as an array of objects
func decodeCollections(data map[shared.Collection]json.RawMessage) (map[shared.Collection][]record, []string) {
	decoded := make(map[shared.Collection][]record, len(data))
	var problems []string

	names := make([]string, 0, len(data))
	for c := range data {
		names = append(names, string(c))
	}
	sort.Strings(names)

	for _, name := range names {
		c := shared.Collection(name)
		if !c.IsValid() {
			problems = append(problems, fmt.Sprintf("unknown collection %q", name))
			continue
		}
		raw := data[c]
		if len(raw) == 0 || string(raw) == "null" {
			decoded[c] = nil
			continue
		}
		var records []record
		if err := json.Unmarshal(raw, &records); err != nil {
			problems = append(problems, fmt.Sprintf("collection %s is not a list of records: %v", c, err))
			continue
		}
		decoded[c] = records
	}
	return decoded, problems
}

// checkReferences lists every reference that does not resolve
func checkReferences(collections map[shared.Collection][]record) []string {
	ids := make(map[shared.Collection]map[string]bool)
	for c, records := range collections {
		set := make(map[string]bool, len(records))
		for _, r := range records {
			if id, ok := r["id"].(string); ok {
				set[id] = true
			}
		}
		ids[c] = set
	}

	var problems []string
	for _, ref := range references {
		for i, r := range collections[ref.from] {
			for _, target := range referencedIDs(r, ref) {
				if !ids[ref.to][target] {
					problems = append(problems, fmt.Sprintf("%s[%d] (%s) references missing %s %s through %s",
						ref.from, i, recordID(r), ref.to, target, ref.field))
				}
			}
		}
	}
	return problems
}

// referencedIDs returns the non-empty ids held by the reference field of r
func referencedIDs(r record, ref reference) []string {
	value, ok := r[ref.field]
	if !ok || value == nil {
		return nil
	}
	if !ref.isList {
		if id, ok := value.(string); ok && present(id) {
			return []string{id}
		}
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if id, ok := v.(string); ok && present(id) {
			out = append(out, id)
		}
	}
	return out
}

func present(id string) bool {
	return id != "" && id != uuid.Nil.String()
}

func recordID(r record) string {
	if id, ok := r["id"].(string); ok {
		return id
	}
	return "no id"
}
