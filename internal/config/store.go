package config

import "os"

const (
	storePathEnv       = "STORE_PATH"
	gcloudProjectEnv   = "GCLOUD_PROJECT_ID"
	usersCollectionEnv = "FIRESTORE_USERS_COLLECTION"

	defaultStorePath       = "medications.json"
	defaultUsersCollection = "users"
)

type StoreConfig struct {
	// Path backs the local JSON file store.
	Path string

	// GCloudProjectID and UsersCollection back the Firestore store.
	GCloudProjectID string
	UsersCollection string
}

func LoadStoreConfig() *StoreConfig {
	path := os.Getenv(storePathEnv)
	if path == "" {
		path = defaultStorePath
	}

	collection := os.Getenv(usersCollectionEnv)
	if collection == "" {
		collection = defaultUsersCollection
	}

	return &StoreConfig{
		Path:            path,
		GCloudProjectID: os.Getenv(gcloudProjectEnv),
		UsersCollection: collection,
	}
}
