package categories

import "github.com/conciliar-dev/conciliar/internal/model"

// DefaultChart returns the starter chart of categories for a small business.
func DefaultChart() []model.Category {
	return []model.Category{
		{ID: 101, Name: "Receita de Vendas", Direction: model.Credit, Code: "3.1.01", Description: "Vendas de produtos e mercadorias"},
		{ID: 102, Name: "Receita de Serviços", Direction: model.Credit, Code: "3.1.02", Description: "Prestação de serviços"},
		{ID: 103, Name: "Rendimentos Financeiros", Direction: model.Credit, Code: "3.2.01"},
		{ID: 104, Name: "Outras Receitas", Direction: model.Credit, Code: "3.9.01"},
		{ID: 201, Name: "Fornecedores", Direction: model.Debit, Code: "4.1.01", Description: "Compras de mercadorias e insumos"},
		{ID: 202, Name: "Folha de Pagamento", Direction: model.Debit, Code: "4.2.01", Description: "Salários e encargos"},
		{ID: 203, Name: "Aluguel", Direction: model.Debit, Code: "4.3.01"},
		{ID: 204, Name: "Energia e Água", Direction: model.Debit, Code: "4.3.02"},
		{ID: 205, Name: "Impostos e Taxas", Direction: model.Debit, Code: "4.4.01"},
		{ID: 206, Name: "Tarifas Bancárias", Direction: model.Debit, Code: "4.5.01", Description: "Tarifas, juros e IOF"},
		{ID: 207, Name: "Outras Despesas", Direction: model.Debit, Code: "4.9.01"},
	}
}
