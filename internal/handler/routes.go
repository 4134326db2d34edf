package handler

import (
	"go-inventory-cost/internal/middleware"
	"go-inventory-cost/internal/model"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Items      *ItemHandler
	Ledger     *LedgerHandler
	Production *ProductionHandler
	Costing    *CostingHandler
	Valuation  *ValuationHandler
}

// Register mounts the engine's routes on api. Every route needs a valid
// actor token; writes also need the matching privilege.
func Register(api fiber.Router, h Handlers, secret string) {
	protected := api.Group("", middleware.RequireAuth(secret))

	// Item registry and BOM feed
	protected.Get("/items", middleware.RequirePrivilege(model.PrivItemView), h.Items.GetItems)
	protected.Get("/items/:id", middleware.RequirePrivilege(model.PrivItemView), h.Items.GetItem)
	protected.Post("/items", middleware.RequirePrivilege(model.PrivItemManage), h.Items.CreateItem)
	protected.Put("/items/:id/standard-cost", middleware.RequirePrivilege(model.PrivItemManage), h.Items.SetStandardCost)
	protected.Put("/items/:id/estimate", middleware.RequirePrivilege(model.PrivItemManage), h.Items.SetEstimate)
	protected.Post("/items/:id/assemblies", middleware.RequirePrivilege(model.PrivAssemblyEdit), h.Items.DefineAssembly)

	// Lot ledger
	protected.Post("/lots", middleware.RequirePrivilege(model.PrivLotReceive), h.Ledger.Receive)
	protected.Post("/consumptions", middleware.RequirePrivilege(model.PrivStockConsume), h.Ledger.Consume)
	protected.Get("/items/:id/balance", middleware.RequirePrivilege(model.PrivItemView), h.Ledger.Balance)
	protected.Get("/items/:id/lots", middleware.RequirePrivilege(model.PrivItemView), h.Ledger.Lots)
	protected.Get("/lots/:id/transactions", middleware.RequirePrivilege(model.PrivItemView), h.Ledger.LotHistory)
	protected.Get("/ledger/verify", middleware.RequirePrivilege(model.PrivLedgerAudit), h.Ledger.Verify)

	// Production
	protected.Post("/assemble", middleware.RequirePrivilege(model.PrivProduce), h.Production.Assemble)
	protected.Post("/disassemble", middleware.RequirePrivilege(model.PrivProduce), h.Production.Disassemble)

	// Costing
	protected.Get("/items/:id/cost-tree", middleware.RequireAnyPrivilege(model.PrivCostView, model.PrivCostRevalue), h.Costing.CostTree)
	protected.Post("/lots/:id/revalue", middleware.RequirePrivilege(model.PrivCostRevalue), h.Costing.Revalue)
	protected.Get("/lots/:id/revaluations", middleware.RequireAnyPrivilege(model.PrivCostView, model.PrivCostRevalue), h.Costing.History)
	protected.Get("/valuation", middleware.RequirePrivilege(model.PrivCostView), h.Valuation.GetSummary)
	protected.Get("/valuation/movement", middleware.RequirePrivilege(model.PrivCostView), h.Valuation.GetMovement)
}
