package domain

// Models lists every persisted type in dependency order for AutoMigrate.
func Models() []any {
	return []any{
		&Account{},
		&Todo{},
		&AccountTodo{},
		&Asset{},
		&Child{},
		&ChildParent{},
	}
}
