package memory

import "field-dispatch/internal/core"

func copyJob(j core.Job) core.Job {
	j.Items = append([]core.LineItem(nil), j.Items...)
	j.RequestID = copyStr(j.RequestID)
	j.SpawnedFromJobID = copyStr(j.SpawnedFromJobID)
	j.NextJobID = copyStr(j.NextJobID)
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.EndedAt != nil {
		t := *j.EndedAt
		j.EndedAt = &t
	}
	return j
}

func copyRequest(r core.ServiceRequest) core.ServiceRequest {
	r.Items = append([]core.LineItem(nil), r.Items...)
	r.TechnicianID = copyStr(r.TechnicianID)
	r.JobID = copyStr(r.JobID)
	return r
}

func copyItem(it core.InventoryItem) core.InventoryItem {
	it.SupplierID = copyStr(it.SupplierID)
	return it
}

func copyOrder(o core.SupplierOrder) core.SupplierOrder {
	o.Lines = append([]core.SupplierOrderLine(nil), o.Lines...)
	o.ReorderKeys = append([]string(nil), o.ReorderKeys...)
	return o
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
