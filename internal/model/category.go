package model

// Category is an accounting category that transactions are classified into.
type Category struct {
	ID          int
	Name        string
	Direction   Direction // credit = revenue side, debit = expense side
	Code        string
	Description string
}

// BankAccount is one of the company's accounts at a financial institution.
type BankAccount struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	BankCode string `yaml:"bank_code"`
	Agency   string `yaml:"agency"`
	Account  string `yaml:"account"`
}
