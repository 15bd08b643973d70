// Package permdb implements the permission directory on DynamoDB.
//
// A single table stores two kinds of records, both keyed by (user, path):
//
//   - Master entry: the owner's record for a file. It carries the owner's
//     permissions, the set of users with access and an optional delete mark.
//   - User entry: one record per user in the master entry's users set,
//     enabling "files accessible to user U" lookups. The owner's user entry
//     shares its key with the master entry.
//
// Master entries are created with a conditional write, which is the only
// mutual exclusion between concurrent creators of the same path.
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name filesaga-permissions \
//	  --attribute-definitions AttributeName=user,AttributeType=S AttributeName=path,AttributeType=S \
//	  --key-schema AttributeName=user,KeyType=HASH AttributeName=path,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package permdb
