// Package config provides the run configuration for stagesync.
//
// A run is described by a single YAML document with five sections:
//
//	source:
//	  type: mongodb
//	  uri: ${SOURCE_URI}
//	  database: cyber
//	  collection: profiles
//	  query: '{"active": true}'
//	  page_size: 1000
//	destination:
//	  type: postgresql
//	  dsn: ${TARGET_DSN}
//	  staging_table: staging.profiles
//	  truncate_staging_table: true
//	  staging_procedure: staging.load_profiles
//	  merge_procedure: staging.merge_profiles
//	transfer:
//	  strategy: bulk        # or structured
//	  chunk_size: 5000
//	  fields: [id, name, email]
//	  max_retries: 10
//	  retry_delay: 30s
//	logging:
//	  level: info
//	observability:
//	  metrics_addr: ":9102"
//
// # Loading
//
// Load substitutes ${VAR_NAME} references, then applies environment
// overrides named after the key path (STAGESYNC_TRANSFER_CHUNK_SIZE,
// STAGESYNC_DESTINATION_DSN, ...) and finally validates the document.
//
// # Validation
//
// The structured strategy requires destination.staging_procedure; the bulk
// strategy requires destination.staging_table. An empty merge_procedure
// disables merging; it is not an error.
package config
