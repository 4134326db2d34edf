package repository

import "gorm.io/gorm"

// Set bundles the repositories the costing services share.
type Set struct {
	Items        ItemRepository
	Lots         LotRepository
	Transactions TransactionRepository
	Assemblies   AssemblyRepository
	Dependencies DependencyRepository
	Revaluations RevaluationRepository
}

func NewSet(db *gorm.DB) *Set {
	return &Set{
		Items:        NewItemRepo(db),
		Lots:         NewLotRepo(db),
		Transactions: NewTransactionRepo(db),
		Assemblies:   NewAssemblyRepo(db),
		Dependencies: NewDependencyRepo(db),
		Revaluations: NewRevaluationRepo(db),
	}
}
