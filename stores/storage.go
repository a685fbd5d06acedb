package stores

import (
	"os"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/stores/aws"
	"github.com/remiPra/chemins-essentiels-admin/stores/filesystem"
	"github.com/remiPra/chemins-essentiels-admin/stores/memory"
	"github.com/remiPra/chemins-essentiels-admin/stores/mongo"
	"github.com/remiPra/chemins-essentiels-admin/stores/postgres"
	"github.com/remiPra/chemins-essentiels-admin/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.PageStore
	core.PostStore
	core.MediaStore
	core.ContentStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "admin.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	case "mongo":
		uri := os.Getenv("MONGO_URI")
		if uri == "" {
			logrus.Fatal("MONGO_URI environment variable must be set for mongo storage type")
		}
		database := os.Getenv("MONGO_DATABASE")
		if database == "" {
			database = "admin_cms"
		}
		storageField["database"] = database
		store = mongo.NewStore(uri, database)
	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			logrus.Fatal("DATABASE_URL environment variable must be set for postgres storage type")
		}
		store = postgres.NewStore(databaseURL)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
