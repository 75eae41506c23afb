package identity

// SeedAccounts returns the demo accounts available at startup.
func SeedAccounts() []Account {
	return []Account{
		{
			User: User{
				ID:    "1",
				Name:  "João Silva",
				Email: "joao@email.com",
				Address: &Address{
					Street:  "Rua das Flores, 123",
					City:    "São Paulo",
					State:   "SP",
					ZipCode: "01234-567",
					Country: "Brasil",
				},
			},
			Password: "123456",
		},
		{
			User: User{
				ID:    "2",
				Name:  "Maria Santos",
				Email: "maria@email.com",
				Address: &Address{
					Street:  "Av. Paulista, 456",
					City:    "São Paulo",
					State:   "SP",
					ZipCode: "01310-100",
					Country: "Brasil",
				},
			},
			Password: "senha123",
		},
	}
}
