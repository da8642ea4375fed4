/*
Package ports defines the driven ports (interfaces) of the Arbor service.

These interfaces decouple the form service from storage backends and from the
external schedule provider.

# Key Interfaces

  - FormStore: persists booking forms (memory, file, Redis, Postgres, Badger).
  - EmployeeStore / OrganizationStore: tenant and employee records.
  - ScheduleProvider: the field-service system employees are synced from.
  - DistributedLocker: serialises writes to one form across replicas.
  - Watchable: stores that can stream change notifications.

Contract suites (RunFormStoreContract and friends) are exported so every
adapter can prove it honours the same behaviour.
*/
package ports
