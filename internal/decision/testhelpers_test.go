package decision

func testCatalog() Catalog {
	return Catalog{
		{Name: "move", Args: []string{"action"}, Description: "Move or animate the body."},
		{Name: "speech", Args: []string{"sentence"}, Description: "Say something out loud."},
		{Name: "face", Args: []string{"expression"}},
	}
}
