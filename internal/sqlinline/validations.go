package sqlinline

// QToggleValidation flips a user's validation mark on a resource: delete it
// if present, insert it otherwise, and report the resulting total. The
// primary query reads the table from the pre-statement snapshot, so the
// total is the snapshot count adjusted by the CTE deltas rather than a
// re-count that cannot see the toggle.
const QToggleValidation = `--sql 903cc5ae-b680-476f-a1a2-25db5a62327b
with removed as (
  delete from validations
  where resource_id = $1::uuid and user_id = $2::uuid
  returning 1
),
added as (
  insert into validations (resource_id, user_id, created_at)
  select $1::uuid, $2::uuid, now()
  where not exists (select 1 from removed)
  returning 1
)
select
  exists(select 1 from added) as validated,
  (select count(*) from validations where resource_id = $1::uuid)
    - (select count(*) from removed)
    + (select count(*) from added) as total;
`

const QListValidatorsByResource = `--sql be83bca7-ffea-4a87-bd42-f8b658c9570e
select user_id
from validations
where resource_id = $1::uuid
order by created_at asc;
`
