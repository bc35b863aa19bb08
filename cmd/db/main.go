package main

import (
	"fmt"

	"github.com/sirgallo/logger"

	"github.com/kvstore/btreemap/pkg/db"
)

var log = logger.NewCustomLog("cmd/db")

func main() {
	database, err := db.NewDB("data/db", db.DefaultConfig())
	if err != nil {
		log.Error("failed to create database: ", err)
		return
	}
	defer database.Close()

	keyValuePairs := map[string]string{
		"apple":  "red",
		"banana": "yellow",
		"grape":  "purple",
		"orange": "orange",
		"cherry": "red",
	}

	fmt.Println("Inserting key-value pairs...")
	for key, value := range keyValuePairs {
		database.Put(key, value)
	}

	fmt.Println("\nDatabase Contents:")
	database.Traverse(func(key, value string) {
		fmt.Printf("%s -> %s\n", key, value)
	})

	searchKeys := []string{"apple", "banana", "mango"}
	fmt.Println("\nSearch Results:")
	for _, key := range searchKeys {
		if value, found := database.Get(key); found {
			fmt.Printf("Found: %s -> %s\n", key, value)
		} else {
			fmt.Printf("Not Found: %s\n", key)
		}
	}

	fmt.Println("\nTesting deletion...")
	database.Delete("apple")

	if value, found := database.Get("apple"); found {
		fmt.Printf("Apple still exists: %s\n", value)
	} else {
		fmt.Println("Apple successfully deleted")
	}
}
