package model

// Privilege is a permission carried in an actor's token.
type Privilege struct {
	Code string `json:"code"` // e.g., "lot:receive"
	Name string `json:"name"` // e.g., "Receive Lot"
}

const (
	PrivItemView     = "item:view"
	PrivItemManage   = "item:manage"
	PrivAssemblyEdit = "assembly:define"
	PrivLotReceive   = "lot:receive"
	PrivStockConsume = "stock:consume"
	PrivProduce      = "production:run"
	PrivCostView     = "cost:view"
	PrivCostRevalue  = "cost:revalue"
	PrivLedgerAudit  = "ledger:audit"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// Item registry
	{Code: PrivItemView, Name: "View Item"},
	{Code: PrivItemManage, Name: "Manage Item Costs"},
	{Code: PrivAssemblyEdit, Name: "Define Assembly"},
	// Ledger
	{Code: PrivLotReceive, Name: "Receive Lot"},
	{Code: PrivStockConsume, Name: "Consume Stock"},
	{Code: PrivLedgerAudit, Name: "Audit Ledger"},
	// Production
	{Code: PrivProduce, Name: "Assemble / Disassemble"},
	// Costing
	{Code: PrivCostView, Name: "View Cost Breakdown"},
	{Code: PrivCostRevalue, Name: "Revalue Lot"},
}

// PrivilegeCodes returns the codes of DefaultPrivileges.
func PrivilegeCodes() []string {
	codes := make([]string, 0, len(DefaultPrivileges))
	for _, p := range DefaultPrivileges {
		codes = append(codes, p.Code)
	}
	return codes
}
